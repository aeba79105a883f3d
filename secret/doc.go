// Package secret turns passwords into the material kept by the identity store.
package secret
