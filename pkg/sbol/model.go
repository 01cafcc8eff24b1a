package sbol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// ComponentDefinition is the view of an sbol:ComponentDefinition
type ComponentDefinition struct {
	URI                string
	PersistentIdentity string
	DisplayID          string
	Version            string
	Title              string
	Description        string
	Types              []string
	Roles              []string
	SequenceURIs       []string
	Annotations        []SequenceAnnotation
}

// Name returns the title, falling back to the display id
func (c ComponentDefinition) Name() string {
	if c.Title != "" {
		return c.Title
	}
	return c.DisplayID
}

// IsDNA reports whether the definition is a DNA region (untyped
// definitions count as DNA)
func (c ComponentDefinition) IsDNA() bool {
	if len(c.Types) == 0 {
		return true
	}
	for _, t := range c.Types {
		if t == TypeDNARegion {
			return true
		}
	}
	return false
}

// SequenceAnnotation is the view of an sbol:SequenceAnnotation
type SequenceAnnotation struct {
	URI         string
	DisplayID   string
	Name        string
	Roles       []string
	DerivedFrom []string
	Ranges      []Range
}

// Range is a one-based inclusive sbol:Range location
type Range struct {
	Start       int
	End         int
	Orientation string
}

// Sequence is the view of an sbol:Sequence
type Sequence struct {
	URI       string
	DisplayID string
	Elements  string
	Encoding  string
}

// Collection is the view of an sbol:Collection
type Collection struct {
	URI       string
	DisplayID string
	Title     string
	Members   []string
}

// ComponentDefinitions lists the top-level component definitions in
// document order
func (d *Document) ComponentDefinitions() []ComponentDefinition {
	var out []ComponentDefinition
	for _, el := range d.topLevels("ComponentDefinition") {
		out = append(out, readComponentDefinition(el))
	}
	return out
}

// Sequences indexes the top-level sequences by URI
func (d *Document) Sequences() map[string]Sequence {
	out := make(map[string]Sequence)
	for _, el := range d.topLevels("Sequence") {
		seq := Sequence{
			URI:       attrNS(el, NamespaceRDF, "about"),
			DisplayID: textNS(el, NamespaceSBOL, "displayId"),
			Elements:  textNS(el, NamespaceSBOL, "elements"),
		}
		if enc := childNS(el, NamespaceSBOL, "encoding"); enc != nil {
			seq.Encoding = attrNS(enc, NamespaceRDF, "resource")
		}
		out[seq.URI] = seq
	}
	return out
}

// Collections lists the top-level collections
func (d *Document) Collections() []Collection {
	var out []Collection
	for _, el := range d.topLevels("Collection") {
		out = append(out, Collection{
			URI:       attrNS(el, NamespaceRDF, "about"),
			DisplayID: textNS(el, NamespaceSBOL, "displayId"),
			Title:     textNS(el, NamespaceDCTerms, "title"),
			Members:   resourcesNS(el, NamespaceSBOL, "member"),
		})
	}
	return out
}

func readComponentDefinition(el *etree.Element) ComponentDefinition {
	cd := ComponentDefinition{
		URI:          attrNS(el, NamespaceRDF, "about"),
		DisplayID:    textNS(el, NamespaceSBOL, "displayId"),
		Version:      textNS(el, NamespaceSBOL, "version"),
		Title:        textNS(el, NamespaceDCTerms, "title"),
		Description:  textNS(el, NamespaceDCTerms, "description"),
		Types:        resourcesNS(el, NamespaceSBOL, "type"),
		Roles:        resourcesNS(el, NamespaceSBOL, "role"),
		SequenceURIs: resourcesNS(el, NamespaceSBOL, "sequence"),
	}
	if pi := childNS(el, NamespaceSBOL, "persistentIdentity"); pi != nil {
		cd.PersistentIdentity = attrNS(pi, NamespaceRDF, "resource")
	}

	for _, holder := range childrenNS(el, NamespaceSBOL, "sequenceAnnotation") {
		for _, sa := range childrenNS(holder, NamespaceSBOL, "SequenceAnnotation") {
			cd.Annotations = append(cd.Annotations, readSequenceAnnotation(sa))
		}
	}
	return cd
}

func readSequenceAnnotation(el *etree.Element) SequenceAnnotation {
	sa := SequenceAnnotation{
		URI:         attrNS(el, NamespaceRDF, "about"),
		DisplayID:   textNS(el, NamespaceSBOL, "displayId"),
		Name:        textNS(el, NamespaceDCTerms, "title"),
		Roles:       resourcesNS(el, NamespaceSBOL, "role"),
		DerivedFrom: resourcesNS(el, NamespaceProv, "wasDerivedFrom"),
	}
	for _, loc := range childrenNS(el, NamespaceSBOL, "location") {
		for _, r := range childrenNS(loc, NamespaceSBOL, "Range") {
			start, _ := strconv.Atoi(textNS(r, NamespaceSBOL, "start"))
			end, _ := strconv.Atoi(textNS(r, NamespaceSBOL, "end"))
			rng := Range{Start: start, End: end}
			if o := childNS(r, NamespaceSBOL, "orientation"); o != nil {
				rng.Orientation = attrNS(o, NamespaceRDF, "resource")
			}
			sa.Ranges = append(sa.Ranges, rng)
		}
	}
	return sa
}

// NewAnnotation describes a sequence annotation to add
type NewAnnotation struct {
	DisplayID   string
	Name        string
	Roles       []string
	DerivedFrom string
	Range       Range
}

// AddSequenceAnnotation appends a sequence annotation with one range to
// the component definition identified by cdURI and returns the URI of
// the new annotation. Display ids are made unique within the definition.
func (d *Document) AddSequenceAnnotation(cdURI string, ann NewAnnotation) (string, error) {
	var cdEl *etree.Element
	for _, el := range d.topLevels("ComponentDefinition") {
		if attrNS(el, NamespaceRDF, "about") == cdURI {
			cdEl = el
			break
		}
	}
	if cdEl == nil {
		return "", fmt.Errorf("component definition not found: %s", cdURI)
	}

	cd := readComponentDefinition(cdEl)
	displayID := uniqueDisplayID(sanitizeDisplayID(ann.DisplayID), cd.Annotations)
	base := cd.PersistentIdentity
	if base == "" {
		base = strings.TrimSuffix(cd.URI, "/"+cd.Version)
	}
	annPI := base + "/" + displayID
	annURI := withVersion(annPI, cd.Version)
	rangePI := annPI + "/range"

	holder := cdEl.CreateElement(d.tag(NamespaceSBOL, "sequenceAnnotation"))
	saEl := holder.CreateElement(d.tag(NamespaceSBOL, "SequenceAnnotation"))
	saEl.CreateAttr(d.tag(NamespaceRDF, "about"), annURI)
	d.identity(saEl, annPI, displayID, cd.Version)
	if ann.Name != "" {
		saEl.CreateElement(d.tag(NamespaceDCTerms, "title")).SetText(ann.Name)
	}
	if ann.DerivedFrom != "" {
		saEl.CreateElement(d.tag(NamespaceProv, "wasDerivedFrom")).CreateAttr(d.tag(NamespaceRDF, "resource"), ann.DerivedFrom)
	}
	for _, role := range ann.Roles {
		saEl.CreateElement(d.tag(NamespaceSBOL, "role")).CreateAttr(d.tag(NamespaceRDF, "resource"), role)
	}

	loc := saEl.CreateElement(d.tag(NamespaceSBOL, "location"))
	rEl := loc.CreateElement(d.tag(NamespaceSBOL, "Range"))
	rEl.CreateAttr(d.tag(NamespaceRDF, "about"), withVersion(rangePI, cd.Version))
	d.identity(rEl, rangePI, "range", cd.Version)
	rEl.CreateElement(d.tag(NamespaceSBOL, "start")).SetText(strconv.Itoa(ann.Range.Start))
	rEl.CreateElement(d.tag(NamespaceSBOL, "end")).SetText(strconv.Itoa(ann.Range.End))
	orientation := ann.Range.Orientation
	if orientation == "" {
		orientation = OrientationInline
	}
	rEl.CreateElement(d.tag(NamespaceSBOL, "orientation")).CreateAttr(d.tag(NamespaceRDF, "resource"), orientation)

	return annURI, nil
}

// ComponentSpec describes a DNA component to add with AddComponent
type ComponentSpec struct {
	Namespace string // URI prefix, e.g. http://example.org
	DisplayID string
	Version   string
	Title     string
	Roles     []string
	Elements  string
}

// AddComponent adds a DNA component definition and its sequence and
// returns the definition URI
func (d *Document) AddComponent(spec ComponentSpec) string {
	root := d.tree.Root()
	ns := strings.TrimSuffix(spec.Namespace, "/")
	cdPI := ns + "/" + spec.DisplayID
	seqID := spec.DisplayID + "_sequence"
	seqPI := ns + "/" + seqID

	cd := root.CreateElement(d.tag(NamespaceSBOL, "ComponentDefinition"))
	cd.CreateAttr(d.tag(NamespaceRDF, "about"), withVersion(cdPI, spec.Version))
	d.identity(cd, cdPI, spec.DisplayID, spec.Version)
	if spec.Title != "" {
		cd.CreateElement(d.tag(NamespaceDCTerms, "title")).SetText(spec.Title)
	}
	cd.CreateElement(d.tag(NamespaceSBOL, "type")).CreateAttr(d.tag(NamespaceRDF, "resource"), TypeDNARegion)
	for _, role := range spec.Roles {
		cd.CreateElement(d.tag(NamespaceSBOL, "role")).CreateAttr(d.tag(NamespaceRDF, "resource"), role)
	}
	cd.CreateElement(d.tag(NamespaceSBOL, "sequence")).CreateAttr(d.tag(NamespaceRDF, "resource"), withVersion(seqPI, spec.Version))

	seq := root.CreateElement(d.tag(NamespaceSBOL, "Sequence"))
	seq.CreateAttr(d.tag(NamespaceRDF, "about"), withVersion(seqPI, spec.Version))
	d.identity(seq, seqPI, seqID, spec.Version)
	seq.CreateElement(d.tag(NamespaceSBOL, "elements")).SetText(spec.Elements)
	seq.CreateElement(d.tag(NamespaceSBOL, "encoding")).CreateAttr(d.tag(NamespaceRDF, "resource"), EncodingIUPACDNA)

	return withVersion(cdPI, spec.Version)
}

func (d *Document) identity(el *etree.Element, persistentIdentity, displayID, version string) {
	el.CreateElement(d.tag(NamespaceSBOL, "persistentIdentity")).CreateAttr(d.tag(NamespaceRDF, "resource"), persistentIdentity)
	el.CreateElement(d.tag(NamespaceSBOL, "displayId")).SetText(displayID)
	if version != "" {
		el.CreateElement(d.tag(NamespaceSBOL, "version")).SetText(version)
	}
}

func withVersion(uri, version string) string {
	if version == "" {
		return uri
	}
	return uri + "/" + version
}

// sanitizeDisplayID maps a name onto the SBOL displayId alphabet
// ([A-Za-z_][A-Za-z0-9_]*)
func sanitizeDisplayID(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if b.Len() == 0 {
				b.WriteRune('_')
			}
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "annotation"
	}
	return b.String()
}

func uniqueDisplayID(id string, existing []SequenceAnnotation) string {
	taken := make(map[string]bool, len(existing))
	for _, a := range existing {
		taken[a.DisplayID] = true
	}
	if !taken[id] {
		return id
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d", id, i)
		if !taken[candidate] {
			return candidate
		}
	}
}
