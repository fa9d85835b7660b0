// Package html provides a Normaliser for HTML and XHTML books.
// Level one and two headings become "# " chapter markers; scripts, styles
// and markup are dropped and entities decoded.
package html
