// Command herdscreen is the terminal client for the herd screening backend.
//
// It waits for the backend to come up, uploads herd workbooks, runs batch
// and single-file filter jobs while showing the backend's processing
// progress, and downloads and previews the filtered result. Submissions are
// recorded in a local journal that `herdscreen history` lists.
package main
