// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"
	"testing"
)

var allIds = []Id{
	NoInputsId,
	NoDocumentsId,
	InputUnclassifiedId,
	CatalogInvalidId,
	KnowledgeBaseUnavailableId,
	ConfigLoadFailedId,
	ReportWriteFailedId,
	PermissionDeniedId,
}

func TestIssuesMapCompleteness(t *testing.T) {
	t.Parallel()

	for _, id := range allIds {
		i := Get(id)
		if i == nil {
			t.Errorf("Get(%d) returned nil", id)
			continue
		}
		if i.Id() != id {
			t.Errorf("Get(%d).Id() = %d", id, i.Id())
		}
		if strings.TrimSpace(string(i.MarkdownMsg())) == "" {
			t.Errorf("issue %d has an empty message", id)
		}
	}
	if Get(Id(0)) != nil || Get(Id(999)) != nil {
		t.Error("Get with an unknown id should return nil")
	}
}

func TestValues(t *testing.T) {
	t.Parallel()

	values := Values()
	if len(values) != len(allIds) {
		t.Fatalf("len(Values()) = %d, want %d", len(values), len(allIds))
	}
	for i, v := range values {
		if v.Id() != allIds[i] {
			t.Errorf("Values()[%d].Id() = %d, want %d", i, v.Id(), allIds[i])
		}
	}
}

func TestIssue_ExtLinks(t *testing.T) {
	t.Parallel()

	i := Get(CatalogInvalidId)
	links := i.ExtLinks()
	if len(links) == 0 {
		t.Fatal("CatalogInvalidId should carry links")
	}
	links[0] = "modified"
	if i.ExtLinks()[0] == "modified" {
		t.Error("ExtLinks() should return a copy")
	}
	if !strings.Contains(i.Markdown(), "## See also") {
		t.Error("Markdown() should include a See also section")
	}
	if strings.Contains(Get(PermissionDeniedId).Markdown(), "See also") {
		t.Error("an issue without links should not have a See also section")
	}
}

func TestIssue_Render(t *testing.T) {
	t.Parallel()

	for _, i := range Values() {
		out, err := i.Render("notty")
		if err != nil {
			t.Errorf("Render(%d): %v", i.Id(), err)
			continue
		}
		if strings.TrimSpace(out) == "" {
			t.Errorf("Render(%d) returned empty output", i.Id())
		}
	}

	out, err := Get(InputUnclassifiedId).Render("notty")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Unknown document format") {
		t.Errorf("rendered output should contain the heading, got %q", out)
	}
}
