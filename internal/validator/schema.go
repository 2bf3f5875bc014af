package validator

import (
	"fmt"
	"os"
	"path/filepath"

	"bidsevents/internal/annotation"
	"bidsevents/internal/errors"
	pjson "bidsevents/internal/parser/json"
)

// DescriptorName is the dataset-level descriptor at the root.
const DescriptorName = "dataset_description.json"

// SchemaVersionField is the descriptor field holding the schema versions.
const SchemaVersionField = "HEDVersion"

// SchemaVersionError is the fatal dataset-level error of Validate.
type SchemaVersionError struct {
	Path   string
	Reason string
	Err    error
}

func (e *SchemaVersionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("schema version (%s): %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("schema version (%s): %s", e.Path, e.Reason)
}

func (e *SchemaVersionError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, errors.ErrSchemaVersion) match.
func (e *SchemaVersionError) Is(target error) bool { return target == errors.ErrSchemaVersion }

// LoadSchemaVersions reads HEDVersion from root's descriptor.
//
// Errors:
//   - *SchemaVersionError when the descriptor is missing, is not a JSON
//     object, lacks HEDVersion, or HEDVersion does not parse.
func LoadSchemaVersions(root string) ([]annotation.SchemaVersion, error) {
	path := filepath.Join(root, DescriptorName)
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithHint(
			&SchemaVersionError{Path: path, Reason: "dataset descriptor missing", Err: err},
			"create dataset_description.json with a HEDVersion field at the dataset root")
	}
	defer f.Close()

	desc, err := pjson.Decode(f)
	if err != nil {
		return nil, &SchemaVersionError{Path: path, Reason: "dataset descriptor malformed", Err: err}
	}
	raw, ok := desc.Get(SchemaVersionField)
	if !ok {
		return nil, errors.WithHintf(
			&SchemaVersionError{Path: path, Reason: SchemaVersionField + " missing"},
			`add e.g. "%s": "8.2.0"`, SchemaVersionField)
	}
	versions, err := annotation.ParseSchemaVersions(raw)
	if err != nil {
		return nil, &SchemaVersionError{Path: path, Reason: SchemaVersionField + " unparseable", Err: err}
	}
	return versions, nil
}
