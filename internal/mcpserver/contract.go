package mcpserver

// NoteFormatContract describes how Neural Notes reads note content, for LLM
// consumers that create notes.
const NoteFormatContract = `# Neural Notes Format Contract

A note is a title plus a list of lines. Each line is classified on its own,
so keep one construct per line.

## Line kinds

- Headers: ` + "`# `" + ` to ` + "`###### `" + ` (a space after the hashes is required).
- Checkboxes: ` + "`- [ ] open`" + ` and ` + "`- [x] done`" + `.
- Bullets: ` + "`- item`" + `, ` + "`* item`" + ` or ` + "`+ item`" + `.
- Numbered items: ` + "`1. item`" + `.
- Quotes: ` + "`> text`" + `.
- Code blocks open with a fence line such as ` + "```go" + ` and close with ` + "```" + `.
  A block without a closing fence runs to the end of the note.
- Anything else is a paragraph line; blank lines are kept.

## Backlinks

Write ` + "`[[Other Note]]`" + ` to link by title. Matching ignores case. A link to a
title that does not exist yet is shown as missing and following it creates
that note.

## Metadata

The title is passed separately when creating a note. If it is omitted, a YAML
frontmatter ` + "`title:`" + ` or the first ` + "`# Heading`" + ` is used.

` + "```" + `markdown
---
title: Weekly standup
tags: [meeting-notes, project-x]
---
# Weekly standup
- [ ] review the [[Design Doc]]
- [x] book the room
` + "```" + `

Tags are lowercase. Inline ` + "`#tags`" + ` outside code blocks are collected too.
Frontmatter is consumed on import and is not part of the stored lines.
`
