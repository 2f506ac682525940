// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

// Id identifies a run-level issue.
type Id int

const (
	NoInputsId Id = iota + 1
	NoDocumentsId
	InputUnclassifiedId
	CatalogInvalidId
	KnowledgeBaseUnavailableId
	ConfigLoadFailedId
	ReportWriteFailedId
	PermissionDeniedId
)

type (
	MarkdownMsg string

	HttpLink string

	Issue struct {
		id       Id          // ID used to lookup the issue
		mdMsg    MarkdownMsg // Markdown text that will be rendered
		extLinks []HttpLink  // upstream reference documentation
	}
)

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Markdown returns the message with a "See also" section for the links.
func (i *Issue) Markdown() string {
	var b strings.Builder
	b.WriteString(string(i.mdMsg))
	if len(i.extLinks) > 0 {
		b.WriteString("\n\n## See also\n")
		for _, link := range i.extLinks {
			b.WriteString("- <" + string(link) + ">\n")
		}
	}
	return b.String()
}

// Render renders the issue for a terminal using a glamour style name or
// path ("dark", "light", "notty", "auto").
func (i *Issue) Render(stylePath string) (string, error) {
	return render(i.Markdown(), stylePath)
}

var (
	render = glamour.Render

	noInputsIssue = &Issue{
		id: NoInputsId,
		mdMsg: `
# Nothing to audit

No input documents were given.

## Things you can try
- Pass files or directories: ` + "`confaudit audit ./infra ./docs`" + `
- Force a format when the file name is ambiguous: ` + "`confaudit audit notes.yaml=prose`",
	}

	noDocumentsIssue = &Issue{
		id: NoDocumentsId,
		mdMsg: `
# No document could be read

Every input failed before parsing, so there is nothing to report on.

## Things you can try
- Check that the paths exist and are readable by the current user
- Files larger than 16 MiB are rejected; split or trim them
- Run again with ` + "`--verbose`" + ` to see each failure`,
	}

	inputUnclassifiedIssue = &Issue{
		id: InputUnclassifiedId,
		mdMsg: `
# Unknown document format

The file name does not match any classify rule, so its format is unknown.

## Things you can try
- Append the format to the argument: ` + "`values.yaml=log`" + `
- Add a rule to your configuration:
~~~
classify: [{pattern: "*-values.yaml", format: "log"}]
~~~
- Valid formats: iac, timeseries, log, tracing, dashboard, prose`,
	}

	catalogInvalidIssue = &Issue{
		id: CatalogInvalidId,
		mdMsg: `
# Rule catalog rejected

A rule catalog failed schema validation or referenced an unknown check.

## Things you can try
- List the rules that did load: ` + "`confaudit rules list`" + `
- Every rule needs ` + "`id`, `severity`, `check` and `message`" + `
- Rule IDs are lowercase and may contain dots, dashes and underscores
- Check regular expressions in ` + "`pattern`" + ` fields compile`,
		extLinks: []HttpLink{"https://cuelang.org/docs/"},
	}

	knowledgeBaseUnavailableIssue = &Issue{
		id: KnowledgeBaseUnavailableId,
		mdMsg: `
# Version knowledge base unavailable

The knowledge base could not be loaded, so version rules cannot run.

## Things you can try
- For a local file, check it is valid YAML with a top-level ` + "`components`" + ` map
- For an ` + "`s3://`" + ` location, check AWS credentials and region (` + "`AWS_PROFILE`, `AWS_REGION`" + `)
- Drop ` + "`--kb`" + ` to use the built-in knowledge base`,
		extLinks: []HttpLink{"https://docs.aws.amazon.com/sdkref/latest/guide/file-format.html"},
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Configuration could not be loaded

## Things you can try
- Show the effective configuration: ` + "`confaudit config show`" + `
- Point to a file explicitly: ` + "`confaudit --config ./confaudit.cue audit .`" + `
- Environment overrides use the ` + "`CONFAUDIT_`" + ` prefix, e.g. ` + "`CONFAUDIT_FAIL_ON=MEDIUM`",
		extLinks: []HttpLink{"https://cuelang.org/docs/"},
	}

	reportWriteFailedIssue = &Issue{
		id: ReportWriteFailedId,
		mdMsg: `
# Report could not be written

## Things you can try
- Check the directory given to ` + "`--out`" + ` exists and is writable
- Write to standard output by omitting ` + "`--out`",
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied

## Things you can try
- Check the file permissions of the inputs and catalogs
- Audit a copy of the files from a readable location`,
	}

	issues = map[Id]*Issue{
		noInputsIssue.Id():                 noInputsIssue,
		noDocumentsIssue.Id():              noDocumentsIssue,
		inputUnclassifiedIssue.Id():        inputUnclassifiedIssue,
		catalogInvalidIssue.Id():           catalogInvalidIssue,
		knowledgeBaseUnavailableIssue.Id(): knowledgeBaseUnavailableIssue,
		configLoadFailedIssue.Id():         configLoadFailedIssue,
		reportWriteFailedIssue.Id():        reportWriteFailedIssue,
		permissionDeniedIssue.Id():         permissionDeniedIssue,
	}
)

// Values returns every issue ordered by Id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		out = append(out, i)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return cmp.Compare(a.id, b.id) })
	return out
}

// Get returns the issue for id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}
