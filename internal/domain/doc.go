// Package domain models CYGNSS reflectometry observations, ISMN ground
// stations and the training rows built by pairing them.
//
// # Data Sources
//
// CYGNSS Level 1 granules (collection C2146321631-POCLOUD) hold one UTC day
// of delay-Doppler maps (DDMs) for one of the eight spacecraft. They are
// fetched from NASA Earthdata OpenDAP with only the needed variables
// subset server-side. ISMN stations come from a pre-built registry; each
// station's soil moisture record is a whitespace separated .stm file.
//
// # CYGNSS Conventions
//
// Shapes (observation index first):
//
//	sp_lat, sp_lon, ddm_snr, sp_rx_gain, ...  [sample][ddm]      ddm = channel 1..4
//	ddm_timestamp_utc                           [sample]           seconds since 00:00 UTC
//	brcs                                        [sample][ddm][delay][doppler]
//
// Longitudes are 0..360 east; the haversine formula is periodic so no
// wrapping is needed before comparing with station coordinates.
//
// # Waveform Width
//
// For each DDM the peak over the Doppler axis is taken per delay row. The
// resulting delay profile is fitted with a not-a-knot cubic spline,
// resampled at K points and measured at 70% of its peak. The width is in
// delay-bin units; WidthUndefined (-1) marks profiles with fewer than two
// samples above the threshold.
//
// # ISMN Conventions
//
//	<date YYYY/MM/DD> <time HH:MM> <soil moisture m3/m3> [flags...]
//
// The first line of a .stm file is the station header and is skipped.
// Ground samples are matched to an observation when they share its calendar
// date and their time of day is strictly within the tolerance (1800 s by
// default). The first such sample in file order is used.
package domain
