/*
Package keylock serializes work per key.

Each request form gets its own mutex, reference counted so idle keys are
released. An optional ports.DistributedLocker extends the exclusion across
replicas.
*/
package keylock
