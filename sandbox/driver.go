package sandbox

import (
	"encoding/json"
	"fmt"
)

// driverFileName is the generated driver program inside the workspace.
const driverFileName = "driver.js"

// pythonHarness runs inside the Pyodide interpreter. The decoded inputs
// are seeded into the execution scope before the script runs, so a
// zero-argument entry point reads them as plain variables; inputs whose
// names match the entry point's parameters are additionally passed as
// keyword arguments. Exactly one outcome object is serialized, and
// script-level failures surface as a single "Kind: message" line with
// no traceback.
const pythonHarness = `import contextlib, inspect, io, json

def _invoke():
    outcome = {"success": False, "output": None, "stdout": "", "stderr": "", "error": None}
    out = io.StringIO()
    err = io.StringIO()
    inputs = json.loads(__runbox_inputs_json) or {}
    scope = {"__name__": "__runbox__"}
    scope.update(inputs)
    try:
        with contextlib.redirect_stdout(out), contextlib.redirect_stderr(err):
            exec(compile(__runbox_script, "<script>", "exec"), scope)
            entry = scope.get(__runbox_entry)
            if not callable(entry):
                raise TypeError("entry point is not callable")
            params = inspect.signature(entry).parameters
            if any(p.kind is inspect.Parameter.VAR_KEYWORD for p in params.values()):
                kwargs = dict(inputs)
            else:
                kwargs = {name: inputs[name] for name in params if name in inputs}
            value = entry(**kwargs)
        outcome["success"] = True
        outcome["output"] = value
    except BaseException as exc:
        outcome["error"] = type(exc).__name__ + ": " + str(exc)
    outcome["stdout"] = out.getvalue()
    outcome["stderr"] = err.getvalue()
    return json.dumps(outcome, default=str)

_invoke()
`

// driverTemplate is the Deno program that hosts the WebAssembly
// interpreter. Its contract with the engine is the output protocol:
// exactly one JSON object on the final non-empty line of stdout.
// Dependency-installation noise before that line is tolerated by the
// decoder, and installation failures are warnings that only matter if
// the script itself subsequently fails.
const driverTemplate = `// Generated driver. Do not edit.
import { loadPyodide } from "npm:pyodide/pyodide.js";

const script = %s;
const entry = %s;
const inputsJSON = %s;
const dependencies = %s;
const harness = %s;

const pyodide = await loadPyodide();

if (dependencies.length > 0) {
  try {
    await pyodide.loadPackage("micropip");
    const micropip = pyodide.pyimport("micropip");
    await micropip.install(dependencies);
  } catch (err) {
    console.error("dependency installation failed: " + err);
  }
}

pyodide.globals.set("__runbox_script", script);
pyodide.globals.set("__runbox_entry", entry);
pyodide.globals.set("__runbox_inputs_json", inputsJSON);

const outcome = await pyodide.runPythonAsync(harness);
console.log(outcome);
`

// buildDriver renders the driver program for one invocation. Script,
// entry name, and inputs are embedded as JSON literals so no caller
// input is ever spliced into code positions.
func buildDriver(script, entry string, inputs map[string]any, dependencies []string) (string, error) {
	scriptJSON, err := json.Marshal(script)
	if err != nil {
		return "", fmt.Errorf("failed to encode script: %w", err)
	}
	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("failed to encode entry point: %w", err)
	}

	if inputs == nil {
		inputs = map[string]any{}
	}
	inputsRaw, err := json.Marshal(inputs)
	if err != nil {
		return "", fmt.Errorf("failed to encode inputs: %w", err)
	}
	inputsJSON, err := json.Marshal(string(inputsRaw))
	if err != nil {
		return "", fmt.Errorf("failed to encode inputs: %w", err)
	}

	if dependencies == nil {
		dependencies = []string{}
	}
	depsJSON, err := json.Marshal(dependencies)
	if err != nil {
		return "", fmt.Errorf("failed to encode dependencies: %w", err)
	}

	harnessJSON, err := json.Marshal(pythonHarness)
	if err != nil {
		return "", fmt.Errorf("failed to encode harness: %w", err)
	}

	return fmt.Sprintf(driverTemplate, scriptJSON, entryJSON, inputsJSON, depsJSON, harnessJSON), nil
}
