package types

// Version is the canonical project version.
// All services (ingest, featurize, infer) share this version; the stream
// record and snapshot layouts are versioned in lockstep with it.
const Version = "0.2.0"
