// Package value defines the managed value word that crosses the trap
// boundary in both directions.
//
// Values are NaN-boxed: any double that is not a tagged quiet NaN is a
// flonum, and fixnums, object references, resource handles, specials and
// errnos live in the tagged NaN space. Errno values carry their own tag so
// that a failure code can never be mistaken for a fixnum result.
package value
