package markup

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/minios-linux/hanloc/fragment"
)

// ErrAddressUnresolvable means a structural address matched no location in
// the freshly parsed document.
var ErrAddressUnresolvable = errors.New("address does not resolve")

// childSteps returns the path step for each element child of e: the tag,
// plus a 1-based [k] predicate when e has more than one child element with
// that tag. Steps depend only on tree shape.
func childSteps(e element) []string {
	kids := e.children()
	total := make(map[string]int, len(kids))
	for _, k := range kids {
		total[k.tag()]++
	}

	seen := make(map[string]int, len(kids))
	steps := make([]string, len(kids))
	for i, k := range kids {
		tag := k.tag()
		seen[tag]++
		if total[tag] > 1 {
			steps[i] = tag + "[" + strconv.Itoa(seen[tag]) + "]"
		} else {
			steps[i] = tag
		}
	}
	return steps
}

// parseStep splits "div[2]" into ("div", 2). No predicate gives index 0.
func parseStep(step string) (string, int, error) {
	open := strings.IndexByte(step, '[')
	if open < 0 {
		if step == "" {
			return "", 0, fmt.Errorf("empty path step")
		}
		return step, 0, nil
	}
	if !strings.HasSuffix(step, "]") || open == 0 {
		return "", 0, fmt.Errorf("malformed path step %q", step)
	}
	n, err := strconv.Atoi(step[open+1 : len(step)-1])
	if err != nil || n < 1 {
		return "", 0, fmt.Errorf("malformed position in path step %q", step)
	}
	return step[:open], n, nil
}

// resolvePath walks an absolute element path from root. A step without a
// predicate must match exactly one child.
func resolvePath(root element, path string) (element, error) {
	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("%w: %q is not absolute", ErrAddressUnresolvable, path)
	}
	steps := strings.Split(path[1:], "/")

	tag, idx, err := parseStep(steps[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAddressUnresolvable, err)
	}
	if tag != root.tag() || idx > 1 {
		return nil, fmt.Errorf("%w: %q does not start at root <%s>", ErrAddressUnresolvable, path, root.tag())
	}

	cur := root
	for _, step := range steps[1:] {
		tag, idx, err := parseStep(step)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAddressUnresolvable, err)
		}
		var matches []element
		for _, k := range cur.children() {
			if k.tag() == tag {
				matches = append(matches, k)
			}
		}
		switch {
		case len(matches) == 0:
			return nil, fmt.Errorf("%w: %q has no <%s> step", ErrAddressUnresolvable, path, tag)
		case idx == 0 && len(matches) > 1:
			return nil, fmt.Errorf("%w: %q step %q is ambiguous (%d matches)", ErrAddressUnresolvable, path, step, len(matches))
		case idx > len(matches):
			return nil, fmt.Errorf("%w: %q step %q is out of range (%d matches)", ErrAddressUnresolvable, path, step, len(matches))
		case idx == 0:
			cur = matches[0]
		default:
			cur = matches[idx-1]
		}
	}
	return cur, nil
}

// Resolve returns the current text at addr: the attribute value, the
// trimmed text run, or the whole inline script text.
func (d *Document) Resolve(addr fragment.NodeAddress) (string, error) {
	el, err := resolvePath(d.tree.root(), addr.Path)
	if err != nil {
		return "", err
	}
	if addr.Attr != "" {
		v, ok := lookupAttr(el, addr.Attr)
		if !ok {
			return "", fmt.Errorf("%w: %s has no attribute %q", ErrAddressUnresolvable, addr.Path, addr.Attr)
		}
		return strings.TrimSpace(v), nil
	}
	runs := el.runs()
	if addr.Inline {
		return strings.Join(runs, ""), nil
	}
	if addr.Run >= len(runs) {
		return "", fmt.Errorf("%w: %s has no text run %d", ErrAddressUnresolvable, addr.Path, addr.Run+1)
	}
	return strings.TrimSpace(runs[addr.Run]), nil
}
