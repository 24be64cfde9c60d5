package seed

import (
	"encoding/hex"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Template is the external, hex-encoded representation of the seed fields.
// Template files may be written in YAML or JSON.
type Template struct {
	EpochLE       string `json:"epoch_le" yaml:"epoch_le"`
	SegmentVRHash string `json:"segment_vr_hash" yaml:"segment_vr_hash"`
	PK            string `json:"pk" yaml:"pk"`
	Pop           string `json:"pop" yaml:"pop"`
}

// LoadTemplate reads and parses a template file.
func LoadTemplate(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read seed template %s", path)
	}
	log.Debugf("Loaded seed template from %s", path)
	return ParseTemplate(data)
}

// ParseTemplate parses a YAML or JSON template.
func ParseTemplate(data []byte) (*Template, error) {
	template := &Template{}
	err := yaml.Unmarshal(data, template)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse seed template")
	}
	return template, nil
}

// TemplateFromFields builds the hex template of a decoded seed.
func TemplateFromFields(fields *Fields) *Template {
	return &Template{
		EpochLE:       hex.EncodeToString(fields.Epoch[:]),
		SegmentVRHash: hex.EncodeToString(fields.SegmentVRHash[:]),
		PK:            hex.EncodeToString(fields.PK[:]),
		Pop:           hex.EncodeToString(fields.Pop[:]),
	}
}

// Seed decodes the template fields and encodes them into a seed.
func (t *Template) Seed() (Seed, error) {
	epoch, err := decodeHexField("epoch_le", t.EpochLE, EpochSize)
	if err != nil {
		return Seed{}, err
	}
	segmentVRHash, err := decodeHexField("segment_vr_hash", t.SegmentVRHash, SegmentVRHashSize)
	if err != nil {
		return Seed{}, err
	}
	pk, err := decodeHexField("pk", t.PK, PKSize)
	if err != nil {
		return Seed{}, err
	}
	pop, err := decodeHexField("pop", t.Pop, PopSize)
	if err != nil {
		return Seed{}, err
	}

	s, err := Encode(epoch, segmentVRHash, pk, pop)
	if err != nil {
		var malformed *MalformedSeedFieldError
		if errors.As(err, &malformed) && malformed.Field == "epoch" {
			malformed.Field = "epoch_le"
		}
		return Seed{}, err
	}
	return s, nil
}

func decodeHexField(name, value string, expected int) ([]byte, error) {
	value = strings.TrimPrefix(strings.TrimSpace(value), "0x")
	decoded, err := hex.DecodeString(value)
	if err != nil {
		return nil, newMalformedSeedFieldError(name, expected, -1)
	}
	return decoded, nil
}
