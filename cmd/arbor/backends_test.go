package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"mercator-hq/arbor/pkg/backend"
)

func TestBackendsReport(t *testing.T) {
	p := newTestParser(t, nil)
	report := BackendsReport{
		Default:  p.Engine().ResolveEffective(context.Background(), ""),
		Backends: p.Engine().Status(),
	}

	buf := &bytes.Buffer{}
	if err := report.WriteText(buf); err != nil {
		t.Fatalf("WriteText() failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Default: auto") {
		t.Errorf("output lacks the default:\n%s", out)
	}
	for _, id := range []string{"gotoml", "burntsushi", "yamlv3", "goyaml", "hcl", "goast", "text"} {
		if !strings.Contains(out, id) {
			t.Errorf("output lacks %s", id)
		}
	}

	rows := report.Rows()
	if len(rows) != 7 || rows[0][0] != "1" || rows[0][1] != "gotoml" {
		t.Errorf("first row = %v, want gotoml at priority 1", rows[0])
	}
}

func TestResolution_WriteText(t *testing.T) {
	r := Resolution{
		Effective:    "auto",
		Resource:     "yaml",
		Backend:      "yamlv3",
		Key:          backend.KeyNative,
		Capabilities: backend.Capabilities{"comments": true},
	}

	buf := &bytes.Buffer{}
	if err := r.WriteText(buf); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Effective: auto", "Backend:   yamlv3 (native)", "comments: true"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output lacks %q:\n%s", want, buf.String())
		}
	}
}
