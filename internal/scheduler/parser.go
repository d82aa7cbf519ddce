package scheduler

import (
	"sort"
	"strconv"
	"strings"

	"github.com/wasilibs/go-re2"
	"golang.org/x/text/unicode/norm"
)

// LLM output is untrusted text of unbounded size; re2 keeps matching linear.
var (
	addTaskRe    = re2.MustCompile(`(?is)<add_task>(.*?)</add_task>`)
	modifyTaskRe = re2.MustCompile(`(?is)<modify_task>(.*?)</modify_task>`)
	deleteTaskRe = re2.MustCompile(`(?is)<delete_task>(.*?)</delete_task>`)
	legacyTaskRe = re2.MustCompile(`(?is)<task>(.*?)</task>`)

	descriptionRe = re2.MustCompile(`(?is)<description>(.*?)</description>`)
	priorityRe    = re2.MustCompile(`(?is)<priority>(.*?)</priority>`)
	executorRe    = re2.MustCompile(`(?is)<executor>(.*?)</executor>`)
	idRe          = re2.MustCompile(`(?is)<id>(.*?)</id>`)
)

// Parse extracts queue operations from LLM text in document order. It never
// fails: malformed or incomplete tags are skipped, and text with no tagged
// operations yields an empty slice. When no add/modify/delete tags are
// present at all, legacy <task> blocks are accepted as adds with default
// priority.
func Parse(text string) []Operation {
	normalized := norm.NFKC.String(text)

	matches := collect(normalized, addTaskRe, OpAdd)
	matches = append(matches, collect(normalized, modifyTaskRe, OpModify)...)
	matches = append(matches, collect(normalized, deleteTaskRe, OpDelete)...)
	sort.Slice(matches, func(i, j int) bool { return matches[i].start < matches[j].start })

	if len(matches) == 0 {
		return parseLegacy(normalized)
	}

	ops := make([]Operation, 0, len(matches))
	for _, m := range matches {
		if op, ok := buildOp(m.kind, m.body); ok {
			ops = append(ops, op)
		}
	}
	return ops
}

type tagMatch struct {
	start int
	kind  OpKind
	body  string
}

func collect(text string, re *re2.Regexp, kind OpKind) []tagMatch {
	var matches []tagMatch
	for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
		matches = append(matches, tagMatch{
			start: loc[0],
			kind:  kind,
			body:  text[loc[2]:loc[3]],
		})
	}
	return matches
}

func buildOp(kind OpKind, body string) (Operation, bool) {
	switch kind {
	case OpAdd:
		description := inner(descriptionRe, body)
		if description == "" {
			return Operation{}, false
		}
		return Operation{
			Kind:        OpAdd,
			Description: description,
			Priority:    inner(priorityRe, body),
			Executor:    inner(executorRe, body),
		}, true

	case OpModify:
		id, ok := parseID(body)
		description := inner(descriptionRe, body)
		if !ok || description == "" {
			return Operation{}, false
		}
		return Operation{
			Kind:        OpModify,
			ID:          id,
			Description: description,
			Priority:    inner(priorityRe, body),
			Executor:    inner(executorRe, body),
		}, true

	case OpDelete:
		id, ok := parseID(body)
		if !ok {
			return Operation{}, false
		}
		return Operation{Kind: OpDelete, ID: id}, true
	}
	return Operation{}, false
}

func parseLegacy(text string) []Operation {
	var ops []Operation
	for _, m := range legacyTaskRe.FindAllStringSubmatch(text, -1) {
		description := strings.TrimSpace(m[1])
		if description == "" {
			continue
		}
		ops = append(ops, Operation{Kind: OpAdd, Description: description})
	}
	return ops
}

func parseID(body string) (int, bool) {
	id, err := strconv.Atoi(inner(idRe, body))
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

func inner(re *re2.Regexp, body string) string {
	m := re.FindStringSubmatch(body)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
