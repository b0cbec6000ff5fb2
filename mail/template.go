package mail

import (
	"io/fs"
	"strings"

	"github.com/flosch/pongo2/v6"
)

// Content is a rendered email.
type Content struct {
	Subject string
	Text    string
	HTML    string
}

// TemplateRenderer renders email templates from a file system. A template
// named "verification" is made of:
//
//	verification_subject.txt  (required, single line)
//	verification.txt          (required, body)
//	verification.html         (optional, html alternative)
type TemplateRenderer struct {
	fsys fs.FS
	set  *pongo2.TemplateSet
}

func NewTemplateRenderer(fsys fs.FS) *TemplateRenderer {
	return &TemplateRenderer{
		fsys: fsys,
		set:  pongo2.NewSet("mail", pongo2.NewFSLoader(fsys)),
	}
}

// Render executes the templates making up name with data.
func (r *TemplateRenderer) Render(name string, data map[string]any) (*Content, error) {
	ctx := pongo2.Context(data)

	subject, err := r.execute(name+"_subject.txt", ctx)
	if err != nil {
		return nil, err
	}

	text, err := r.execute(name+".txt", ctx)
	if err != nil {
		return nil, err
	}

	content := &Content{
		Subject: strings.Join(strings.Fields(subject), " "),
		Text:    text,
	}

	if _, err := fs.Stat(r.fsys, name+".html"); err == nil {
		if content.HTML, err = r.execute(name+".html", ctx); err != nil {
			return nil, err
		}
	}

	return content, nil
}

func (r *TemplateRenderer) execute(file string, ctx pongo2.Context) (string, error) {
	tpl, err := r.set.FromCache(file)
	if err != nil {
		return "", mailError(CodeTemplate).
			With("template", file).
			Wrapf(err, "failed to load mail template")
	}

	out, err := tpl.Execute(ctx)
	if err != nil {
		return "", mailError(CodeTemplate).
			With("template", file).
			Wrapf(err, "failed to render mail template")
	}

	return out, nil
}
