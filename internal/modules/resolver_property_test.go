//go:build property

package modules

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/conneroisu/sitecycle/internal/dom"
)

// TestResolverProperties validates instance creation against the document.
func TestResolverProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1357)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	c := NewCatalog()
	if err := c.RegisterClass("stub", stubFactory("stub")); err != nil {
		t.Fatal(err)
	}

	properties.Property("N marked elements yield N instances in document order", prop.ForAll(
		func(marked, unmarked int) bool {
			var sb strings.Builder
			sb.WriteString("<body>")
			for i := 0; i < marked; i++ {
				fmt.Fprintf(&sb, `<div id="m%d" data-module="stub"><span>%d</span></div>`, i, i)
				if i < unmarked {
					sb.WriteString(`<p>filler</p>`)
				}
			}
			sb.WriteString("</body>")

			doc, err := dom.ParseString(sb.String())
			if err != nil {
				return false
			}

			instances := NewResolver(c, newScope(nil)).Create(context.Background(), doc, "module")
			if len(instances) != marked {
				return false
			}
			for i, inst := range instances {
				if id, _ := inst.Element().Attr("id"); id != fmt.Sprintf("m%d", i) {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 40),
		gen.IntRange(0, 40),
	))

	properties.Property("unregistered identifiers never produce instances", prop.ForAll(
		func(id string) bool {
			if id == "stub" {
				return true
			}
			doc, err := dom.ParseString(fmt.Sprintf(`<div data-module=%q></div>`, id))
			if err != nil {
				return false
			}
			return len(NewResolver(c, newScope(nil)).Create(context.Background(), doc, "module")) == 0
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
