// Package dataset loads and watches the files an analysis is built from.
//
// Three file kinds are supported, all decoded with yaml.v3 (so the scanner's
// JSON exports load unchanged):
//   - LayerExport: exported_at, software, quality_score, layers [] with
//     name, thickness, boundary_points, color
//   - ScanExport: exported_at, software, total_scans, scans [] with id,
//     patient_id, scan_date, eye, scan_type, notes
//   - NormativeTable: name, layers [] with name, mean_um, std_um
//
// LoadLayers, LoadScans and LoadNormative read the file, decode it, then
// validate it. Validation reports every problem at once as a
// *multierror.Error. Positivity of std_um is left to the comparator.
//
// Watch(ctx, paths, onChange) uses fsnotify to detect file changes and calls
// onChange with the path that changed. It re-adds each watch after a write so
// atomic-save editors (rename then create) keep being observed.
package dataset
