package compose

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/juju/collections/set"
	"gopkg.in/yaml.v3"

	"nodectl/internal/envfile"
	"nodectl/internal/service"
)

// NetworkOverlayFile is the one compose fragment nodectl owns outright.
// It carries nothing but network attachments and is rewritten wholesale
// whenever the computed topology changes; the other fragments are never
// touched after install.
const NetworkOverlayFile = "compose-networks.yml"

const generatedHeader = "# Generated by nodectl. Do not edit; this file is rewritten on every\n# topology change.\n"

// Document is the slice of the compose file format nodectl reads and
// writes. Anything outside these fields passes through untouched on
// read and is never emitted on write.
type Document struct {
	Services map[string]Service `yaml:"services,omitempty"`
	Networks map[string]Network `yaml:"networks,omitempty"`
}

// Service is one container definition inside a fragment.
type Service struct {
	Image         string            `yaml:"image,omitempty"`
	ContainerName string            `yaml:"container_name,omitempty"`
	Restart       string            `yaml:"restart,omitempty"`
	Command       []string          `yaml:"command,omitempty"`
	Environment   map[string]string `yaml:"environment,omitempty"`
	Ports         []string          `yaml:"ports,omitempty"`
	Volumes       []string          `yaml:"volumes,omitempty"`
	Networks      []string          `yaml:"networks,omitempty"`
	DependsOn     []string          `yaml:"depends_on,omitempty"`
	Labels        map[string]string `yaml:"labels,omitempty"`
}

// Network is a top-level network entry. All networks nodectl attaches
// are created outside compose, so they are always marked external.
type Network struct {
	External bool `yaml:"external,omitempty"`
}

// Fragments returns the fragment file names an instance configuration
// selects, in order.
func Fragments(cfg *envfile.File) []string {
	raw, ok := cfg.Get(service.KeyComposeFile)
	if !ok || raw == "" {
		return nil
	}
	var out []string
	for _, f := range strings.Split(raw, ":") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// SetFragments stores the fragment list back into an instance
// configuration, preserving order.
func SetFragments(cfg *envfile.File, fragments []string) {
	cfg.Set(service.KeyComposeFile, strings.Join(fragments, ":"))
}

// ServiceKeys returns the sorted union of compose service names across
// the instance's fragments, excluding the network overlay itself. The
// overlay must attach exactly these services.
func ServiceKeys(dir string, fragments []string) ([]string, error) {
	keys := set.NewStrings()
	for _, frag := range fragments {
		if frag == NetworkOverlayFile {
			continue
		}
		doc, err := ReadDocument(filepath.Join(dir, frag))
		if err != nil {
			return nil, fmt.Errorf("reading fragment %s: %w", frag, err)
		}
		for name := range doc.Services {
			keys.Add(name)
		}
	}
	return keys.SortedValues(), nil
}

// ReadDocument parses one fragment file.
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return &doc, nil
}

// NetworkOverlay builds the overlay document attaching every given
// compose service to every given network. Networks are sorted so the
// encoded form is stable and comparable across rewrites.
func NetworkOverlay(serviceKeys, networks []string) *Document {
	nets := append([]string(nil), networks...)
	sort.Strings(nets)

	doc := &Document{
		Services: make(map[string]Service, len(serviceKeys)),
		Networks: make(map[string]Network, len(nets)),
	}
	for _, key := range serviceKeys {
		doc.Services[key] = Service{Networks: nets}
	}
	for _, n := range nets {
		doc.Networks[n] = Network{External: true}
	}
	return doc
}

// networkSet unions the top-level network entries with every service's
// attachment list.
func (d *Document) networkSet() set.Strings {
	nets := set.NewStrings()
	for n := range d.Networks {
		nets.Add(n)
	}
	for _, svc := range d.Services {
		for _, n := range svc.Networks {
			nets.Add(n)
		}
	}
	return nets
}

// OverlayNetworks reads the network set granted by the overlay on disk.
// A missing overlay reads as the empty set.
func OverlayNetworks(dir string) (set.Strings, error) {
	doc, err := ReadDocument(filepath.Join(dir, NetworkOverlayFile))
	if os.IsNotExist(err) {
		return set.NewStrings(), nil
	}
	if err != nil {
		return set.Strings{}, err
	}
	return doc.networkSet(), nil
}

// Encode renders the document with the generated-file header.
func (d *Document) Encode() ([]byte, error) {
	body, err := yaml.Marshal(d)
	if err != nil {
		return nil, err
	}
	return append([]byte(generatedHeader), body...), nil
}

// WriteOverlay writes the overlay into the instance directory, but only
// when its content differs from what is already on disk. Reports
// whether the file changed.
func WriteOverlay(dir string, doc *Document) (bool, error) {
	encoded, err := doc.Encode()
	if err != nil {
		return false, err
	}
	path := filepath.Join(dir, NetworkOverlayFile)
	existing, err := os.ReadFile(path)
	if err == nil && bytes.Equal(existing, encoded) {
		return false, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return false, err
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return false, err
	}
	return true, nil
}

// WriteDocument writes a fragment file as-is, no change detection.
func WriteDocument(path string, doc *Document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
