// Package peers keeps track of the peers a node is connected to.
//
// Registry is the live, in-memory table shared by every connection routine
// and by the periodic sweep. BadgerBook is the persistent record of every
// address the node ever registered, kept under the storage path.
package peers
