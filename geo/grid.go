package geo

import (
	"math"

	"tidbyt.dev/txc/model"
)

// Converts between the British National Grid (OSGB36, EPSG:27700)
// and WGS84. Accuracy is that of a single Helmert transform, around
// five metres, which is plenty for placing bus stops.

type ellipsoid struct {
	a, b float64
}

func (e ellipsoid) e2() float64 {
	return 1 - (e.b*e.b)/(e.a*e.a)
}

var (
	airy1830 = ellipsoid{a: 6377563.396, b: 6356256.909}
	wgs84    = ellipsoid{a: 6378137.000, b: 6356752.3141}
)

const (
	gridF0 = 0.9996012717
	gridE0 = 400000.0
	gridN0 = -100000.0
)

var (
	gridLat0 = 49 * math.Pi / 180
	gridLon0 = -2 * math.Pi / 180
)

// OSGB36 to WGS84 Helmert parameters.
const (
	helmertTx = 446.448
	helmertTy = -125.157
	helmertTz = 542.060
	helmertS  = -20.4894 // ppm
	helmertRx = 0.1502   // arcseconds
	helmertRy = 0.2470
	helmertRz = 0.8421
)

// GridToWGS84 converts an easting/northing pair to a WGS84 point.
func GridToWGS84(easting, northing float64) model.Point {
	lat, lon := gridToOSGB36(easting, northing)
	x, y, z := toCartesian(lat, lon, airy1830)
	x, y, z = helmert(x, y, z)
	lat, lon = fromCartesian(x, y, z, wgs84)
	return model.Point{
		Lat: lat * 180 / math.Pi,
		Lon: lon * 180 / math.Pi,
	}
}

// Inverse transverse mercator projection on the Airy 1830
// ellipsoid. Returns radians.
func gridToOSGB36(easting, northing float64) (float64, float64) {
	a, b := airy1830.a, airy1830.b
	e2 := airy1830.e2()
	n := (a - b) / (a + b)
	n2, n3 := n*n, n*n*n

	meridional := func(lat float64) float64 {
		dl, sl := lat-gridLat0, lat+gridLat0
		ma := (1 + n + 5.0/4*n2 + 5.0/4*n3) * dl
		mb := (3*n + 3*n2 + 21.0/8*n3) * math.Sin(dl) * math.Cos(sl)
		mc := (15.0/8*n2 + 15.0/8*n3) * math.Sin(2*dl) * math.Cos(2*sl)
		md := 35.0 / 24 * n3 * math.Sin(3*dl) * math.Cos(3*sl)
		return b * gridF0 * (ma - mb + mc - md)
	}

	lat := gridLat0
	m := 0.0
	for i := 0; i < 100; i++ {
		lat = (northing-gridN0-m)/(a*gridF0) + lat
		m = meridional(lat)
		if math.Abs(northing-gridN0-m) < 0.00001 {
			break
		}
	}

	sinLat := math.Sin(lat)
	nu := a * gridF0 / math.Sqrt(1-e2*sinLat*sinLat)
	rho := a * gridF0 * (1 - e2) / math.Pow(1-e2*sinLat*sinLat, 1.5)
	eta2 := nu/rho - 1

	tanLat := math.Tan(lat)
	tan2 := tanLat * tanLat
	tan4 := tan2 * tan2
	tan6 := tan4 * tan2
	secLat := 1 / math.Cos(lat)
	nu3 := nu * nu * nu
	nu5 := nu3 * nu * nu
	nu7 := nu5 * nu * nu

	vii := tanLat / (2 * rho * nu)
	viii := tanLat / (24 * rho * nu3) * (5 + 3*tan2 + eta2 - 9*tan2*eta2)
	ix := tanLat / (720 * rho * nu5) * (61 + 90*tan2 + 45*tan4)
	x := secLat / nu
	xi := secLat / (6 * nu3) * (nu/rho + 2*tan2)
	xii := secLat / (120 * nu5) * (5 + 28*tan2 + 24*tan4)
	xiia := secLat / (5040 * nu7) * (61 + 662*tan2 + 1320*tan4 + 720*tan6)

	de := easting - gridE0
	de2 := de * de
	de3 := de2 * de
	de4 := de3 * de
	de5 := de4 * de
	de6 := de5 * de
	de7 := de6 * de

	phi := lat - vii*de2 + viii*de4 - ix*de6
	lambda := gridLon0 + x*de - xi*de3 + xii*de5 - xiia*de7
	return phi, lambda
}

func toCartesian(lat, lon float64, e ellipsoid) (float64, float64, float64) {
	e2 := e.e2()
	sinLat := math.Sin(lat)
	nu := e.a / math.Sqrt(1-e2*sinLat*sinLat)
	x := nu * math.Cos(lat) * math.Cos(lon)
	y := nu * math.Cos(lat) * math.Sin(lon)
	z := (1 - e2) * nu * sinLat
	return x, y, z
}

func helmert(x, y, z float64) (float64, float64, float64) {
	const arcsec = math.Pi / (180 * 3600)
	s1 := helmertS/1e6 + 1
	rx := helmertRx * arcsec
	ry := helmertRy * arcsec
	rz := helmertRz * arcsec

	x2 := helmertTx + x*s1 - y*rz + z*ry
	y2 := helmertTy + x*rz + y*s1 - z*rx
	z2 := helmertTz - x*ry + y*rx + z*s1
	return x2, y2, z2
}

func fromCartesian(x, y, z float64, e ellipsoid) (float64, float64) {
	e2 := e.e2()
	p := math.Sqrt(x*x + y*y)
	lat := math.Atan2(z, p*(1-e2))
	for i := 0; i < 100; i++ {
		sinLat := math.Sin(lat)
		nu := e.a / math.Sqrt(1-e2*sinLat*sinLat)
		next := math.Atan2(z+e2*nu*sinLat, p)
		if math.Abs(next-lat) < 1e-12 {
			lat = next
			break
		}
		lat = next
	}
	return lat, math.Atan2(y, x)
}
