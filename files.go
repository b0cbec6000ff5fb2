package accounts

import (
	"embed"
	"io/fs"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

//go:embed data/views
var viewsFS embed.FS

//go:embed data/templates/mail
var mailTemplatesFS embed.FS

// GetMigrationsFS returns the migration files for this package, one
// directory per dialect: sqlite and postgres.
func GetMigrationsFS() fs.FS {
	return mustSub(migrationsFS, "data/sql/migrations")
}

// GetViewsFS returns the HTML views rendered by the controller.
func GetViewsFS() fs.FS {
	return mustSub(viewsFS, "data/views")
}

// GetMailTemplatesFS returns the email templates used by MailNotifier.
func GetMailTemplatesFS() fs.FS {
	return mustSub(mailTemplatesFS, "data/templates/mail")
}

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
