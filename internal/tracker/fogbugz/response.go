package fogbugz

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// document is the relevant content of an XML API response.
// The names of the custom fields are configurable, therefore the elements
// are collected by name instead of being unmarshaled into a fixed struct.
type document struct {
	Error string
	// CaseCount is the count attribute of the cases element, -1 if the
	// response has no cases element.
	CaseCount int
	// Fields contains the text of the first element with a name.
	Fields map[string]string
	Tags   []string
}

func (d *document) field(name string) (string, error) {
	val, exists := d.Fields[name]
	if !exists {
		return "", fmt.Errorf("response does not contain the field %q", name)
	}

	return val, nil
}

type xmlDecoder struct{}

// Decode implements sling.ResponseDecoder.
func (xmlDecoder) Decode(resp *http.Response, v interface{}) error {
	doc, ok := v.(*document)
	if !ok {
		return fmt.Errorf("xmlDecoder: unsupported type %T", v)
	}

	return parseDocument(resp.Body, doc)
}

func parseDocument(r io.Reader, doc *document) error {
	dec := xml.NewDecoder(r)

	doc.CaseCount = -1
	doc.Fields = map[string]string{}

	var texts []*strings.Builder

	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if len(texts) != 0 {
					return io.ErrUnexpectedEOF
				}

				return nil
			}

			return fmt.Errorf("parsing xml response failed: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			texts = append(texts, &strings.Builder{})

			if t.Name.Local == "cases" {
				for _, attr := range t.Attr {
					if attr.Name.Local != "count" {
						continue
					}

					cnt, err := strconv.Atoi(attr.Value)
					if err != nil {
						return fmt.Errorf("count attribute of cases element is not a number: %w", err)
					}
					doc.CaseCount = cnt
				}
			}

		case xml.CharData:
			if len(texts) > 0 {
				texts[len(texts)-1].Write(t)
			}

		case xml.EndElement:
			if len(texts) == 0 {
				return errors.New("parsing xml response failed: unbalanced end element")
			}

			text := strings.TrimSpace(texts[len(texts)-1].String())
			texts = texts[:len(texts)-1]

			switch t.Name.Local {
			case "tag":
				doc.Tags = append(doc.Tags, text)
			case "error":
				doc.Error = text
			default:
				if _, exists := doc.Fields[t.Name.Local]; !exists {
					doc.Fields[t.Name.Local] = text
				}
			}
		}
	}
}
