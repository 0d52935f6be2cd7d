// Package bacon implements Bacon's biliteral cipher and its steganographic
// use in letter casing.
//
// What:
//
//   - Encode / Decode: every Latin letter becomes a group of five symbols
//     drawn from {a, b}. Characters without a code either pass through or are
//     dropped, per Options.IncludeForeignChars.
//   - EncryptInText / DecryptInText: the symbol stream is carried by the case
//     of an innocent cover text, lower case for a and upper case for b.
//   - Scatter: buries a symbol stream in random printable noise.
//
// Tables:
//
//   - V1, the original 24-letter table. I and J share a code, as do U and V.
//     Decoding a shared code always yields the earlier letter of the pair
//     (i, u), so "jinx" comes back as "iinx". This loss is inherent to the
//     table.
//   - V2, 26 codes, one per letter, counting 0..25 in five-bit binary with
//     a=0 and b=1. Round-trips exactly. This is the default.
//
// Decoded text is always lower case.
//
// Errors:
//
//   - ErrUnknownVersion: version other than 1 or 2.
//   - ErrInsufficientCoverText: the cover text has fewer letters than five
//     times the letters of the secret. The message states the required count.
//
// All functions are pure and safe for concurrent use; tables are built once
// at package initialisation.
package bacon
