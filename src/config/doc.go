// Package config defines the configuration for a fractis node.
//
// Regardless of how the node is started, directly from Go code or as a
// standalone process from the command line, it uses the Config object defined
// in this package. On top of these options, the node relies on a data
// directory, defined by Config.DataDir, where it expects to find:
//
//  priv_key     // a plain text file containing the raw private key (cf. fractis keygen).
//  fractis.toml // (optional) the configuration file; .json and .yaml also work.
//
// Databases live under Config.StoragePath, which is created on Prepare.
package config
