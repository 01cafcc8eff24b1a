// Package sbol reads and writes SBOL2 RDF/XML design documents.
//
// Only the parts of the data model the annotation service touches are
// surfaced as Go types (component definitions, sequences, sequence
// annotations, collections). Everything else in a document is kept in
// the underlying XML tree and written back unchanged.
package sbol

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/beevik/etree"
)

// Namespaces used by SBOL2 documents
const (
	NamespaceRDF     = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	NamespaceSBOL    = "http://sbols.org/v2#"
	NamespaceDCTerms = "http://purl.org/dc/terms/"
	NamespaceProv    = "http://www.w3.org/ns/prov#"
)

// Well-known terms
const (
	TypeDNARegion      = "http://www.biopax.org/release/biopax-level3.owl#DnaRegion"
	EncodingIUPACDNA   = "http://www.chem.qmul.ac.uk/iubmb/misc/naseq.html"
	OrientationInline  = "http://sbols.org/v2#inline"
	OrientationReverse = "http://sbols.org/v2#reverseComplement"
)

var defaultPrefixes = map[string]string{
	NamespaceRDF:     "rdf",
	NamespaceSBOL:    "sbol",
	NamespaceDCTerms: "dcterms",
	NamespaceProv:    "prov",
}

// ErrInvalidDocument is returned when text is not a readable SBOL2 document
var ErrInvalidDocument = errors.New("invalid SBOL document")

// Document is a parsed design document
type Document struct {
	tree *etree.Document
}

// NewDocument creates an empty document with the standard namespace
// declarations
func NewDocument() *Document {
	tree := etree.NewDocument()
	tree.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)
	root := tree.CreateElement("rdf:RDF")
	for ns, prefix := range defaultPrefixes {
		root.CreateAttr("xmlns:"+prefix, ns)
	}
	return &Document{tree: tree}
}

// Parse reads a document from its RDF/XML serialization
func Parse(text string) (*Document, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty content", ErrInvalidDocument)
	}

	if err := checkWellFormed(text); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	tree := etree.NewDocument()
	if err := tree.ReadFromString(text); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	doc := &Document{tree: tree}
	if err := doc.validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

// checkWellFormed runs a strict token pass; etree reads raw tokens and
// does not match end tags or detect truncated input on its own
func checkWellFormed(text string) error {
	dec := xml.NewDecoder(strings.NewReader(text))
	for {
		if _, err := dec.Token(); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

// validate checks the structural rules the service depends on
func (d *Document) validate() error {
	root := d.tree.Root()
	if root == nil {
		return fmt.Errorf("%w: no root element", ErrInvalidDocument)
	}
	if root.NamespaceURI() != NamespaceRDF || root.Tag != "RDF" {
		return fmt.Errorf("%w: root element is %s, expected rdf:RDF", ErrInvalidDocument, root.FullTag())
	}

	for _, el := range root.ChildElements() {
		if el.NamespaceURI() != NamespaceSBOL {
			continue
		}
		if attrNS(el, NamespaceRDF, "about") == "" {
			return fmt.Errorf("%w: %s without rdf:about", ErrInvalidDocument, el.Tag)
		}
		if el.Tag == "Sequence" && childNS(el, NamespaceSBOL, "elements") == nil {
			return fmt.Errorf("%w: sequence %s has no elements", ErrInvalidDocument, attrNS(el, NamespaceRDF, "about"))
		}
	}
	return nil
}

// Serialize writes the document back to RDF/XML
func (d *Document) Serialize() (string, error) {
	d.tree.Indent(2)
	text, err := d.tree.WriteToString()
	if err != nil {
		return "", fmt.Errorf("failed to serialize document: %w", err)
	}
	return text, nil
}

// Copy returns a deep copy that can be mutated independently
func (d *Document) Copy() *Document {
	return &Document{tree: d.tree.Copy()}
}

// Codec parses and serializes design documents
type Codec interface {
	Parse(text string) (*Document, error)
	Serialize(doc *Document) (string, error)
}

// XMLCodec is the RDF/XML Codec
type XMLCodec struct{}

// Parse implements Codec
func (XMLCodec) Parse(text string) (*Document, error) {
	return Parse(text)
}

// Serialize implements Codec
func (XMLCodec) Serialize(doc *Document) (string, error) {
	return doc.Serialize()
}

// prefix returns the prefix bound to ns on the root element, declaring
// the default prefix when the document has none
func (d *Document) prefix(ns string) string {
	root := d.tree.Root()
	for _, a := range root.Attr {
		if a.Space == "xmlns" && a.Value == ns {
			return a.Key
		}
	}
	p := defaultPrefixes[ns]
	root.CreateAttr("xmlns:"+p, ns)
	return p
}

func (d *Document) tag(ns, local string) string {
	return d.prefix(ns) + ":" + local
}

// topLevels returns the root children of the given SBOL type
func (d *Document) topLevels(tag string) []*etree.Element {
	root := d.tree.Root()
	if root == nil {
		return nil
	}
	return childrenNS(root, NamespaceSBOL, tag)
}

func childrenNS(el *etree.Element, ns, tag string) []*etree.Element {
	var out []*etree.Element
	for _, c := range el.ChildElements() {
		if c.Tag == tag && c.NamespaceURI() == ns {
			out = append(out, c)
		}
	}
	return out
}

func childNS(el *etree.Element, ns, tag string) *etree.Element {
	for _, c := range el.ChildElements() {
		if c.Tag == tag && c.NamespaceURI() == ns {
			return c
		}
	}
	return nil
}

func attrNS(el *etree.Element, ns, key string) string {
	for _, a := range el.Attr {
		if a.Key == key && a.NamespaceURI() == ns {
			return a.Value
		}
	}
	return ""
}

func textNS(el *etree.Element, ns, tag string) string {
	if c := childNS(el, ns, tag); c != nil {
		return strings.TrimSpace(c.Text())
	}
	return ""
}

func resourcesNS(el *etree.Element, ns, tag string) []string {
	var out []string
	for _, c := range childrenNS(el, ns, tag) {
		if r := attrNS(c, NamespaceRDF, "resource"); r != "" {
			out = append(out, r)
		}
	}
	return out
}
