// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package forwarder

import (
	"strconv"

	"github.com/google/uuid"

	"github.com/tomtom215/telemon/internal/models"
)

// recordNamespace scopes record message ids.
var recordNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/tomtom215/telemon/records"))

// Metadata keys set on every forwarded message.
const (
	MetadataRecordType = "record_type"
	MetadataPath       = "path"
	MetadataExternalID = "external_id"
)

// Subject returns the NATS subject a record is published on.
func Subject(prefix string, r models.Record) string {
	return prefix + "." + r.RecordType().String()
}

// MessageID returns a stable id for a record. Republishing the same record
// yields the same id, so JetStream deduplicates it within the duplicate
// window.
func MessageID(r models.Record) string {
	name := r.RecordType().String() + ":" + strconv.FormatUint(r.RecordID(), 10)
	return uuid.NewSHA1(recordNamespace, []byte(name)).String()
}

// Payload encodes a record as its JSON envelope.
func Payload(r models.Record) ([]byte, error) {
	return models.EncodeRecord(r)
}

// Metadata returns the message headers describing r.
func Metadata(r models.Record) map[string]string {
	return map[string]string{
		MetadataRecordType: r.RecordType().String(),
		MetadataPath:       r.EntityPath().String(),
		MetadataExternalID: strconv.FormatInt(r.EntityID(), 10),
	}
}
