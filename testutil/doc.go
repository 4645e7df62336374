// Package testutil provides test doubles shared by linesink package tests:
// a fault-injecting afero filesystem, a scriptable codec, and in-memory
// source and sink implementations.
//
// Typical use in a sink test:
//
//	fs := testutil.NewFailingFs(afero.NewMemMapFs())
//	fs.SetSyncErr(testutil.ErrMockIO)
//	sink, _ := file.NewSink(raw, component.Dependencies{Fs: fs})
package testutil
