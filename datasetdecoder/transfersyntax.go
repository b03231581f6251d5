package datasetdecoder

import (
	"fmt"

	godicom "github.com/grailbio/go-dicom"
	"github.com/grailbio/go-dicom/dicomio"
)

// TransferSyntax is one encoding a presentation context can negotiate,
// resolved to its canonical UID.
type TransferSyntax struct {
	UID string
}

// LookupTransferSyntax resolves uid against the standard transfer syntax
// registry and returns its canonical form. A UID the registry doesn't know
// returns an error.
func LookupTransferSyntax(uid string) (TransferSyntax, error) {
	canonical, err := dicomio.CanonicalTransferSyntaxUID(uid)
	if err != nil {
		return TransferSyntax{}, fmt.Errorf("LookupTransferSyntax(%s): %w", uid, err)
	}
	return TransferSyntax{UID: canonical}, nil
}

// DecodeDataSet parses a reassembled data-set payload encoded under ts into
// its elements. Unlike command sets, data sets use whatever transfer syntax
// the presentation context negotiated, so ts must come from the context's
// LookupTransferSyntax result rather than being assumed.
func DecodeDataSet(data []byte, ts TransferSyntax) ([]*godicom.Element, error) {
	decoder := dicomio.NewBytesDecoderWithTransferSyntax(data, ts.UID)
	var elems []*godicom.Element
	for !decoder.EOF() {
		elem := godicom.ReadElement(decoder, godicom.ReadOptions{})
		if decoder.Error() != nil {
			break
		}
		elems = append(elems, elem)
	}
	if err := decoder.Error(); err != nil {
		return nil, fmt.Errorf("DecodeDataSet(%s): %w", ts.UID, err)
	}
	return elems, nil
}

// EncodeDataSet is DecodeDataSet's sending mirror: it serializes elems under
// ts, ready to be fragmented into data PDVs.
func EncodeDataSet(elems []*godicom.Element, ts TransferSyntax) ([]byte, error) {
	e := dicomio.NewBytesEncoderWithTransferSyntax(ts.UID)
	for _, elem := range elems {
		godicom.WriteElement(e, elem)
	}
	if err := e.Error(); err != nil {
		return nil, fmt.Errorf("EncodeDataSet(%s): %w", ts.UID, err)
	}
	return e.Bytes(), nil
}
