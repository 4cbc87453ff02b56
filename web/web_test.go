package web

import (
	"io/fs"
	"strings"
	"testing"
)

func TestStaticFiles(t *testing.T) {
	for _, name := range []string{"index.html", "script.js", "style.css"} {
		data, err := fs.ReadFile(StaticFiles(), name)
		if err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
		if len(data) == 0 {
			t.Errorf("%s is empty", name)
		}
	}
}

func TestScriptPollsData(t *testing.T) {
	data, err := fs.ReadFile(StaticFiles(), "script.js")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "fetch('/data')") {
		t.Error("script.js does not poll /data")
	}
}
