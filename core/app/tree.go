package app

import (
	"fmt"
	"strings"

	"github.com/xlab/treeprint"

	"github.com/ftl/mfp/core/proc"
)

// Tree of the given patches and their children, nested patches become branches.
func Tree(patches []*proc.Patch) treeprint.Tree {
	result := treeprint.NewWithRoot("mfp")
	for _, patch := range patches {
		addPatch(result, patch)
	}
	return result
}

func addPatch(tree treeprint.Tree, patch *proc.Patch) {
	branch := tree.AddMetaBranch(patch.Processor().ID, describe(patch.Processor()))
	for _, child := range patch.Children() {
		if nested, ok := proc.AsPatch(child); ok {
			addPatch(branch, nested)
			continue
		}
		branch.AddMetaNode(child.ID, describe(child))
	}
}

func describe(p *proc.Processor) string {
	parts := []string{p.Type}
	if p.InitArgs != "" {
		parts = append(parts, p.InitArgs)
	}
	if p.Name != "" {
		parts = append(parts, fmt.Sprintf("(%s)", p.Name))
	}
	if p.Status == proc.StatusError {
		parts = append(parts, "ERROR: "+p.Diagnostic)
	}
	return strings.Join(parts, " ")
}
