// Package deps checks that the external tools a sweep shells out to are
// installed and usable.
package deps
