package geotiff

// This package defines an interactive tool for combining multiple georeferenced raster images (GeoTIFFs) into a single mosaic and for reprojecting rasters to a different coordinate reference system. Common operations include: gathering raster files, merging files, reprojecting files and reporting on outputs. The pixel-level work is delegated to GDAL; the code here is discovery, selection, orchestration and progress logging around it.
