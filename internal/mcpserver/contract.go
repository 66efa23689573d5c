package mcpserver

// FileFormatContract describes the plain-text project file format that
// LLM consumers should follow when reading or editing project files.
const FileFormatContract = `# Egret Project File Format

Every .egret project file has up to three sections, separated by one
empty line: metadata, log, body. All sections are optional.

## Structure

` + "```" + `
Name: my-project              # metadata: "Key: value" lines
Tags: work, client            # comma/space separated tag list
Lang: en                      # locale for month names in the log

2025
10 march: 9:00-12:30 3h 30m +dev
 - wrote the parser
11 march:
 - full-day entry, no time interval

body text, notes, anything.
 - bullet lists
t12 a tracked task +tag priority:high
t a new task not yet in the task store
` + "```" + `

## Rules

1. **Metadata** starts the file only when the first line looks like
   ` + "`" + `Key: value` + "`" + ` AND does not look like a log line. Multi-line values
   continue on indented lines.
2. **The log** starts with a year line (` + "`" + `2025` + "`" + `), a dated entry, or a
   date context line (` + "`" + `-- 1 march 2025` + "`" + `). Entry heads are
   ` + "`" + `day month: HH:MM-HH:MM` + "`" + `; the end time may be omitted while work
   is in progress. Durations (` + "`" + `3h 30m` + "`" + `) are recomputed automatically,
   do not edit them by hand. Lines under a head must be indented.
3. **Shorthand commands** in the log are resolved by annotate_project:
   ` + "`" + `15:30` + "`" + ` becomes an open entry for today at 15:30; ` + "`" + `+` + "`" + ` becomes a
   full-day entry for today.
4. **Dates without a year** inherit it from the entry above; a bare
   year line resets the context.
5. **Tasks** in the body are lines starting with ` + "`" + `t` + "`" + `: ` + "`" + `t` + "`" + ` alone
   marks a new task, ` + "`" + `t12` + "`" + ` one already synchronized with id 12.
   ` + "`" + `+tags` + "`" + ` and ` + "`" + `key:value` + "`" + ` attributes
   (start/due/until/wait/scheduled/priority) follow the description.
6. **Do not edit** bracketed annotations like ` + "`" + `[2025-03-10 09:00 pending]` + "`" + `
   or ` + "`" + `[git:abc1234]` + "`" + ` activity lines; they are machine-managed.
7. **Encoding** is UTF-8 with a trailing newline.
8. A ` + "`" + `Parse-Errors` + "`" + ` metadata field lists lines the parser could not
   understand; it disappears once they are fixed.
`
