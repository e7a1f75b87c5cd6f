/*
Package model defines the core data model shared by every other package in
this module: paths, keys, nodes, priorities, and query specifications.

These types have no knowledge of the network, the sync tree, or the write
queue — they are pure value types with ordering and equality rules fixed by
the Realtime Database wire protocol. Every other package builds on top of
them.
*/
package model
