package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiscoverEntryPoint(t *testing.T) {
	tests := []struct {
		name   string
		script string
		kind   EntryPointKind
		entry  string
	}{
		{
			name:   "NoCallables",
			script: "x = 1\nprint(x)\n",
			kind:   NoCallables,
		},
		{
			name:   "SingleCallableAnyName",
			script: "def process():\n    return qty * price\n",
			kind:   SingleCallable,
			entry:  "process",
		},
		{
			name:   "SingleCallableOneLiner",
			script: "def main(): return 10*2",
			kind:   SingleCallable,
			entry:  "main",
		},
		{
			name:   "SingleAsyncCallable",
			script: "async def fetch(url):\n    return url\n",
			kind:   SingleCallable,
			entry:  "fetch",
		},
		{
			name:   "MultipleWithEntry",
			script: "def helper():\n    pass\n\ndef main(a, b):\n    return helper()\n",
			kind:   MultipleWithEntry,
			entry:  "main",
		},
		{
			name:   "MultipleWithoutEntry",
			script: "def first():\n    pass\n\ndef second():\n    pass\n",
			kind:   MultipleWithoutEntry,
		},
		{
			name:   "NestedDefsAreNotCandidates",
			script: "def main():\n    def inner():\n        pass\n    return inner\n",
			kind:   SingleCallable,
			entry:  "main",
		},
		{
			name:   "MethodsAreNotCandidates",
			script: "class Thing:\n    def method(self):\n        pass\n\ndef main():\n    return Thing()\n",
			kind:   SingleCallable,
			entry:  "main",
		},
		{
			name:   "DefPrefixWithoutSpaceIsNotADefinition",
			script: "define = 1\ndefx(2)\n",
			kind:   NoCallables,
		},
		{
			name:   "EmptyScript",
			script: "",
			kind:   NoCallables,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep := DiscoverEntryPoint(tt.script)
			assert.Equal(t, tt.kind, ep.Kind)
			assert.Equal(t, tt.entry, ep.Name)
		})
	}
}

func TestDiscoverEntryPointIsIdempotent(t *testing.T) {
	script := "def a():\n    pass\n\ndef main():\n    pass\n"
	first := DiscoverEntryPoint(script)
	second := DiscoverEntryPoint(script)
	assert.Equal(t, first, second)
}
