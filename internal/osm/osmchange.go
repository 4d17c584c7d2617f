package osm

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// ActionType is the kind of change applied to a node.
type ActionType string

const (
	ActionCreate ActionType = "create"
	ActionModify ActionType = "modify"
	ActionDelete ActionType = "delete"
)

// Node is a node element of an osmChange document.
type Node struct {
	ID        int64
	Version   int64
	Changeset int64
	UID       int64
	Lon       float64
	Lat       float64
	Tags      map[string]string
}

// NodeAction pairs a node with the action applied to it. Way and relation
// children of the change document are discarded during parsing.
type NodeAction struct {
	Type ActionType
	Node Node
}

type xmlNode struct {
	ID        string `xml:"id,attr"`
	Version   string `xml:"version,attr"`
	Changeset string `xml:"changeset,attr"`
	UID       string `xml:"uid,attr"`
	Lon       string `xml:"lon,attr"`
	Lat       string `xml:"lat,attr"`
	Tags      []struct {
		K string `xml:"k,attr"`
		V string `xml:"v,attr"`
	} `xml:"tag"`
}

// ParseOSMChange reads an osmChange document from a stream and returns the
// node actions in document order. Unknown action wrappers fail with
// ErrMalformedDiff.
func ParseOSMChange(r io.Reader) ([]NodeAction, error) {
	d := xml.NewDecoder(r)

	var actions []NodeAction
	var current ActionType
	depth := 0

	for {
		token, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedDiff, err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			depth++
			switch depth {
			case 1:
				if t.Name.Local != "osmChange" {
					return nil, fmt.Errorf("%w: unexpected root element %q", ErrMalformedDiff, t.Name.Local)
				}
			case 2:
				switch t.Name.Local {
				case "create":
					current = ActionCreate
				case "modify":
					current = ActionModify
				case "delete":
					current = ActionDelete
				default:
					return nil, fmt.Errorf("%w: unknown action %q", ErrMalformedDiff, t.Name.Local)
				}
			case 3:
				switch t.Name.Local {
				case "node":
					var raw xmlNode
					if err := d.DecodeElement(&raw, &t); err != nil {
						return nil, fmt.Errorf("%w: decode node: %v", ErrMalformedDiff, err)
					}
					node, err := typedNode(raw)
					if err != nil {
						return nil, err
					}
					actions = append(actions, NodeAction{Type: current, Node: node})
				default:
					// ways and relations are not indexed
					if err := d.Skip(); err != nil {
						return nil, fmt.Errorf("%w: %v", ErrMalformedDiff, err)
					}
				}
				depth--
			}
		case xml.EndElement:
			depth--
		}
	}

	return actions, nil
}

// typedNode converts raw string attributes into their strict types.
func typedNode(raw xmlNode) (Node, error) {
	node := Node{Tags: make(map[string]string, len(raw.Tags))}

	var err error
	if node.ID, err = parseAttrInt("id", raw.ID); err != nil {
		return Node{}, err
	}
	if node.Version, err = parseAttrVersion(raw.Version); err != nil {
		return Node{}, err
	}
	if raw.Changeset != "" {
		if node.Changeset, err = parseAttrInt("changeset", raw.Changeset); err != nil {
			return Node{}, err
		}
	}
	if raw.UID != "" {
		if node.UID, err = parseAttrInt("uid", raw.UID); err != nil {
			return Node{}, err
		}
	}
	// deleted nodes omit their coordinates
	if raw.Lon != "" {
		if node.Lon, err = parseAttrFloat("lon", raw.Lon); err != nil {
			return Node{}, err
		}
	}
	if raw.Lat != "" {
		if node.Lat, err = parseAttrFloat("lat", raw.Lat); err != nil {
			return Node{}, err
		}
	}

	for _, tag := range raw.Tags {
		node.Tags[tag.K] = tag.V
	}
	return node, nil
}

func parseAttrInt(name, value string) (int64, error) {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: attribute %s=%q is not an integer", ErrMalformedDiff, name, value)
	}
	return n, nil
}

// parseAttrVersion parses a version attribute, tolerating the floating
// form found in older planet dumps (truncated toward zero).
func parseAttrVersion(value string) (int64, error) {
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: attribute version=%q is not a number", ErrMalformedDiff, value)
	}
	return int64(f), nil
}

func parseAttrFloat(name, value string) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: attribute %s=%q is not a number", ErrMalformedDiff, name, value)
	}
	return f, nil
}
