package appfs

import (
	"io/fs"
	"path"
	"testing"
)

func TestFS(t *testing.T) {
	files := []string{
		path.Join(EmailTemplatesDir, "_base.txt"),
		path.Join(EmailTemplatesDir, "_base.gohtml"),
		path.Join(EmailTemplatesDir, "receipt.gohtml"),
		path.Join(EmailTemplatesDir, "password_reset.txt"),
		path.Join(MigrationsDir, "00001_create_users.sql"),
		CommonPasswords,
	}
	for _, name := range files {
		if _, err := fs.Stat(FS, name); err != nil {
			t.Errorf("%s is not embedded: %v", name, err)
		}
	}
}
