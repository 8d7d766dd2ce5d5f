// Package workbook previews downloaded result workbooks: sheet names,
// headers, the first rows of each sheet and which columns hold numbers.
package workbook
