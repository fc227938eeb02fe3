// Package internal holds small helpers shared by goMFA packages that are not
// part of the public API.
package internal
