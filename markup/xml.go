package markup

import (
	"fmt"
	"io"

	"github.com/beevik/etree"
)

type xmlTree struct {
	doc *etree.Document
}

func parseXML(r io.Reader) (*xmlTree, error) {
	doc := etree.NewDocument()
	// Input is already UTF-8; the default CharsetReader passes it through
	// whatever the declaration says.
	doc.ReadSettings = etree.ReadSettings{
		Permissive:    true,
		PreserveCData: true,
	}
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("parsing xml: %w", err)
	}
	stripXMLComments(&doc.Element)
	return &xmlTree{doc: doc}, nil
}

func stripXMLComments(e *etree.Element) {
	for _, tok := range append([]etree.Token(nil), e.Child...) {
		switch t := tok.(type) {
		case *etree.Comment:
			e.RemoveChild(t)
		case *etree.Element:
			stripXMLComments(t)
		}
	}
}

func (t *xmlTree) root() element {
	if r := t.doc.Root(); r != nil {
		return xmlElement{r}
	}
	return nil
}

func (t *xmlTree) render(w io.Writer) error {
	if _, err := t.doc.WriteTo(w); err != nil {
		return fmt.Errorf("rendering xml: %w", err)
	}
	return nil
}

type xmlElement struct {
	e *etree.Element
}

func (x xmlElement) tag() string { return x.e.FullTag() }

func (x xmlElement) children() []element {
	kids := x.e.ChildElements()
	out := make([]element, len(kids))
	for i, k := range kids {
		out[i] = xmlElement{k}
	}
	return out
}

func (x xmlElement) attrs() []Attr {
	out := make([]Attr, 0, len(x.e.Attr))
	for _, a := range x.e.Attr {
		out = append(out, Attr{Key: a.FullKey(), Value: a.Value})
	}
	return out
}

func (x xmlElement) setAttr(key, value string) {
	x.e.CreateAttr(key, value)
}

func (x xmlElement) runs() []string {
	runs := []string{""}
	for _, tok := range x.e.Child {
		switch t := tok.(type) {
		case *etree.CharData:
			runs[len(runs)-1] += t.Data
		case *etree.Element:
			runs = append(runs, "")
		}
	}
	return runs
}

func (x xmlElement) setRun(i int, text string) bool {
	if i == 0 {
		x.e.SetText(text)
		return true
	}
	kids := x.e.ChildElements()
	if i > len(kids) {
		return false
	}
	kids[i-1].SetTail(text)
	return true
}
