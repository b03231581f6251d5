// Package datasetdecoder is the concrete collaborator that turns the byte
// payload reassembled from a run of P-DATA-TF PDUs into a DIMSE command (and
// back). Command sets are handled with github.com/suyashkumar/dicom and its
// pkg/tag; the transfer-syntax registry and data-set element codec use
// github.com/grailbio/go-dicom.
//
// Only the Verification (C-ECHO) service class is implemented; the other
// DIMSE services named in the Command Field registry (C-STORE, C-FIND,
// C-GET, C-MOVE, N-*) are out of scope, matching the association layer's own
// Non-goals.
package datasetdecoder
