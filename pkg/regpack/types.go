// Package regpack signs regulatory XML documents and packs them into
// encrypted archives
package regpack

import (
	"strconv"

	"github.com/sirosfoundation/go-regpack/pkg/credential"
	"github.com/sirosfoundation/go-regpack/pkg/failure"
	"github.com/sirosfoundation/go-regpack/pkg/xades"
)

// DefaultEntryName names the archive entry when the request does not.
const DefaultEntryName = "enveloped.xml"

// Attribute keys set on the outcome for the calling framework.
const (
	AttrMIMEType        = "mime.type"
	AttrSigned          = "dgoj.signed"
	AttrEncrypted       = "dgoj.encrypted"
	AttrSignatureMethod = "dgoj.signature.method"
	AttrErrorMessage    = "error.message"
	AttrErrorKind       = "error.kind"
)

// Request is the input of one pipeline invocation.
type Request struct {
	// Document is the UTF-8 XML payload.
	Document []byte

	Certificate credential.Reference
	PrivateKey  credential.Reference

	// PrivateKeyPassword is required for encrypted PKCS#8 keys only.
	PrivateKeyPassword string
	// ArchivePassword must not be empty.
	ArchivePassword string

	// Packaging defaults to enveloped.
	Packaging xades.Packaging
	// EntryName defaults to DefaultEntryName.
	EntryName string
}

// Stage is a state of the pipeline.
type Stage string

const (
	StageStart               Stage = "Start"
	StageCredentialsResolved Stage = "CredentialsResolved"
	StageKeysLoaded          Stage = "KeysLoaded"
	StageSigned              Stage = "Signed"
	StagePackaged            Stage = "Packaged"
	StageDone                Stage = "Done"
	StageFailed              Stage = "Failed"
)

// Metadata describes a finished invocation. Fields that depend on a stage
// that was not reached stay empty.
type Metadata struct {
	InvocationID    string
	MIMEType        string
	Signed          bool
	Encrypted       bool
	SignatureMethod xades.Packaging
	EntryName       string

	DocumentSHA256 string
	ArchiveSHA256  string

	SignerSubject string
	SignerSerial  string
	KeyAlgorithm  string

	Warnings []string
}

// Outcome is the terminal result of an invocation: either Archive is set and
// Failure is nil, or Archive is nil and Failure carries the kind.
type Outcome struct {
	Archive  []byte
	Metadata Metadata
	Failure  *failure.Error
	// Stage is StageDone or StageFailed.
	Stage Stage
	// Reached is the last stage completed. On failure the failing step is
	// the one after it.
	Reached Stage
}

// OK reports whether the invocation produced an archive.
func (o *Outcome) OK() bool {
	return o.Failure == nil && o.Archive != nil
}

// Err returns the failure as an error, or nil.
func (o *Outcome) Err() error {
	if o.Failure == nil {
		return nil
	}
	return o.Failure
}

// Attributes returns the key/value attributes a flow framework attaches to
// the produced archive, or the error attributes on failure.
func (o *Outcome) Attributes() map[string]string {
	if !o.OK() {
		attrs := map[string]string{}
		if o.Failure != nil {
			attrs[AttrErrorMessage] = o.Failure.Error()
			attrs[AttrErrorKind] = string(o.Failure.Kind)
		}
		return attrs
	}
	return map[string]string{
		AttrMIMEType:        o.Metadata.MIMEType,
		AttrSigned:          strconv.FormatBool(o.Metadata.Signed),
		AttrEncrypted:       strconv.FormatBool(o.Metadata.Encrypted),
		AttrSignatureMethod: string(o.Metadata.SignatureMethod),
	}
}
