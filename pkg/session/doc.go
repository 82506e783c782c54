/*
Package session manages live conversations.

A Manager owns one interpreter per session id and serialises the operations on it
with a reference-counted local lock, optionally backed by a distributed lock so
several replicas can share a session store. After every operation the session
snapshot is persisted; sessions missing in memory are restored from the store on
first use, and completed runs are handed to the archiver once.
*/
package session
