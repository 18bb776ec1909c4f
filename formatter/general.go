package formatter

// issueTemplate renders one finding: header, source snippet, marker and
// message, then the bound metavariables.
const issueTemplate = `{{header .Rule .Severity .MaxLineNumWidth .Filename .StartLine .StartColumn -}}
{{snippet .SnippetLines .StartLine .EndLine .LastLine .MaxLineNumWidth .CommonIndent .Padding -}}
{{underlineAndMessage .Message .Padding .StartLine .EndLine .StartColumn .EndColumn .SnippetLines .CommonIndent -}}
{{metavars .Metavars .Padding}}
`
