// SPDX-License-Identifier: MPL-2.0

package document

import (
	"bufio"
	"bytes"
	"strings"

	"gopkg.in/ini.v1"
)

// parseINI handles grafana.ini style files. Dotted section names nest, so
// [auth.anonymous] enabled lives at auth.anonymous.enabled. Values stay text;
// normalizers interpret them.
func parseINI(_ string, raw []byte) (*Node, error) {
	cfg, err := ini.LoadSources(ini.LoadOptions{AllowBooleanKeys: true}, raw)
	if err != nil {
		return nil, &syntaxError{msg: err.Error()}
	}
	lines := locateINIKeys(raw)

	root := newMapping(nil, Location{LineStart: 1})
	for _, sec := range cfg.Sections() {
		parent := root
		name := sec.Name()
		if name != ini.DefaultSection {
			for _, part := range strings.Split(name, ".") {
				next, ok := parent.Child(part)
				if !ok || next.Kind != KindMapping {
					next = newMapping(parent.Path.Append(KeySegment(part)), Location{LineStart: lines[name]})
					parent.setChild(part, next)
				}
				parent = next
			}
		}
		for _, key := range sec.Keys() {
			line := lines[name+"\x00"+key.Name()]
			if line == 0 {
				line = lines[name]
			}
			p := parent.Path.Append(KeySegment(key.Name()))
			v := key.String()
			parent.setChild(key.Name(), newScalar(p, v, v, Location{LineStart: line, LineEnd: line}))
		}
	}
	return root, nil
}

func locateINIKeys(raw []byte) map[string]int {
	lines := map[string]int{}
	section := ini.DefaultSection
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "" || line[0] == ';' || line[0] == '#':
			continue
		case line[0] == '[':
			end := strings.IndexByte(line, ']')
			if end < 0 {
				continue
			}
			section = strings.TrimSpace(line[1:end])
			if _, ok := lines[section]; !ok {
				lines[section] = lineNo
			}
		default:
			key := line
			if i := strings.IndexAny(line, "=:"); i >= 0 {
				key = line[:i]
			}
			id := section + "\x00" + strings.TrimSpace(key)
			if _, ok := lines[id]; !ok {
				lines[id] = lineNo
			}
		}
	}
	return lines
}
