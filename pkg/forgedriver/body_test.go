package forgedriver

import (
	"os"
	"strings"
	"testing"
)

func TestRenderBodyFileList(t *testing.T) {
	body := RenderBody("Synced files:\n\n{{FILES}}\n", []Touched{
		{Path: ".prettierrc.json"},
		{Path: "old-config.json", Deleted: true},
	})

	if !strings.Contains(body, "- `.prettierrc.json`") {
		t.Errorf("missing file bullet:\n%s", body)
	}
	if !strings.Contains(body, "- `old-config.json` **[DELETED]**") {
		t.Errorf("missing deleted badge:\n%s", body)
	}
}

func TestRenderBodyDefaultTemplate(t *testing.T) {
	body := RenderBody("", []Touched{{Path: "a.json"}})
	if !strings.Contains(body, "- `a.json`") {
		t.Errorf("default template missing file list:\n%s", body)
	}
}

func TestWriteBodyFile(t *testing.T) {
	path, cleanup, err := WriteBodyFile("", []Touched{{Path: "a.json"}})
	if err != nil {
		t.Fatalf("WriteBodyFile: %v", err)
	}
	defer cleanup()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read body file: %v", err)
	}
	if !strings.Contains(string(data), "- `a.json`") {
		t.Errorf("body = %q", data)
	}

	cleanup()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("cleanup left body file behind")
	}
}
