package datasetdecoder

import "github.com/suyashkumar/dicom/pkg/tag"

// Command group element tags, PS3.7 E.1.
var (
	tagAffectedSOPClassUID     = tag.Tag{Group: 0x0000, Element: 0x0002}
	tagCommandField            = tag.Tag{Group: 0x0000, Element: 0x0100}
	tagMessageID               = tag.Tag{Group: 0x0000, Element: 0x0110}
	tagMessageIDBeingRespondTo = tag.Tag{Group: 0x0000, Element: 0x0120}
	tagCommandDataSetType      = tag.Tag{Group: 0x0000, Element: 0x0800}
	tagStatus                  = tag.Tag{Group: 0x0000, Element: 0x0900}
	tagErrorComment            = tag.Tag{Group: 0x0000, Element: 0x0902}
)
