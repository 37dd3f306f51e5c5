// ndb provides methods to reading Plan 9 Network Database (ndb) files.
//
// ndb files are a simple key-value storage mechanism that can be used to
// specify configuration information. The format also supports including other
// files to facilitate configuration use over different (networked) file
// systems.
package ndb
