// Package reading defines sensor readings, their classification and the
// per-class parameters used by consumers.
//
// Classification policy (in order):
//  1. The trimmed token parses as a base-10 integer: Integer
//  2. Otherwise it parses as a finite float: Float
//  3. Otherwise: Invalid
//
// Integer readings belong to the temperature class and Float readings to the
// pH class. Negative values classify normally but are not routable.
//
// Queue elements are Items, a tagged union of a Reading and the end-of-stream
// marker, so no numeric value doubles as a termination signal.
package reading
