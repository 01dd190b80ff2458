// Package toast renders the transient notifications shown next to the
// signup form.
package toast

import (
	"context"
	"fmt"
	"io"

	twmerge "github.com/Oudwins/tailwind-merge-go"
	"github.com/a-h/templ"
)

// ContainerID is the element the out-of-band toasts are appended to.
const ContainerID = "toast-container"

// Variants understood by Toast.
const (
	VariantDefault     = "default"
	VariantDestructive = "destructive"
	VariantWarning     = "warning"
)

const baseClass = "pointer-events-auto w-full max-w-sm rounded-lg border p-4 shadow-lg bg-white text-gray-900 border-gray-200"

var variantClass = map[string]string{
	VariantDefault:     "",
	VariantDestructive: "bg-red-50 text-red-900 border-red-300",
	VariantWarning:     "bg-amber-50 text-amber-900 border-amber-300",
}

// Data holds what one toast shows.
type Data struct {
	Title       string
	Description string
	Variant     string
	// AutoDismiss is the number of seconds before the toast hides. Zero
	// means the default of 5.
	AutoDismiss int
	// Class is merged over the variant classes.
	Class string
}

// Class returns the merged class list for a variant. Unknown variants use
// the default styling.
func Class(variant, extra string) string {
	return twmerge.Merge(baseClass, variantClass[variant], extra)
}

// Toast renders a single toast.
func Toast(d Data) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		seconds := d.AutoDismiss
		if seconds <= 0 {
			seconds = 5
		}
		role := "status"
		if d.Variant == VariantDestructive {
			role = "alert"
		}

		if _, err := fmt.Fprintf(w,
			`<div role="%s" class="%s" data-toast data-dismiss-after="%d">`,
			role, templ.EscapeString(Class(d.Variant, d.Class)), seconds,
		); err != nil {
			return err
		}
		if d.Title != "" {
			if _, err := fmt.Fprintf(w, `<p class="text-sm font-semibold">%s</p>`, templ.EscapeString(d.Title)); err != nil {
				return err
			}
		}
		if d.Description != "" {
			if _, err := fmt.Fprintf(w, `<p class="mt-1 text-sm opacity-90">%s</p>`, templ.EscapeString(d.Description)); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</div>`)
		return err
	})
}

// OOB wraps a toast in an htmx out-of-band swap that appends it to the
// toast container.
func OOB(d Data) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<div hx-swap-oob="beforeend:#%s">`, ContainerID); err != nil {
			return err
		}
		if err := Toast(d).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</div>`)
		return err
	})
}
