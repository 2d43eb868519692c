package importer

import (
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
	"gopkg.in/yaml.v3"
)

// DecodeFile decodes an import payload, picking the format from the file
// extension (.yaml/.yml vs JSON) and transcoding from the named charset
// first when one is given. Rural cadastre exports still ship as
// ISO-8859-1 more often than not.
func DecodeFile(name string, raw []byte, charset string) (*Payload, error) {
	if charset != "" && !strings.EqualFold(charset, "utf-8") {
		decoded, err := Transcode(raw, charset)
		if err != nil {
			return nil, err
		}
		raw = decoded
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return DecodeYAML(raw)
	default:
		return DecodeJSON(raw)
	}
}

// DecodeJSON decodes a JSON import payload.
func DecodeJSON(raw []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, eris.Wrap(err, "importer: decode json payload")
	}
	return &p, nil
}

// DecodeYAML decodes a YAML import payload.
func DecodeYAML(raw []byte) (*Payload, error) {
	var p Payload
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, eris.Wrap(err, "importer: decode yaml payload")
	}
	return &p, nil
}

// Transcode converts raw bytes from the named charset to UTF-8.
func Transcode(raw []byte, charset string) ([]byte, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, eris.Wrapf(err, "importer: unsupported charset %q", charset)
	}
	out, err := io.ReadAll(enc.NewDecoder().Reader(bytes.NewReader(raw)))
	if err != nil {
		return nil, eris.Wrapf(err, "importer: transcode from %q", charset)
	}
	return out, nil
}
