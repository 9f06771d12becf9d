// Package service defines what a service instance is: the naming
// convention that maps instance names to kinds, the configuration an
// instance is described by, and the disk registry the rest of the
// system reads instances from.
//
// An instance is nothing but a directory under the services root with a
// .env file in it. There is no database and no daemon; the directory
// either exists or it does not, and everything else is derived from the
// container runtime at the moment it is asked.
package service
