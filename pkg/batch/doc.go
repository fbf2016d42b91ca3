// Package batch defines the sensor batch document and the two ways of
// obtaining one: picking the newest file from an ingestion directory, or
// generating a simulated batch.
package batch
