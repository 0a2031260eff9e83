// Package influxdb records MFA operation metrics in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, batched non-blocking writes and health monitoring. The
// MetricsRecorder adapter turns each device resource call into an
// mfa_operations point tagged with operation, realm and outcome.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB, logger)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	metrics := influxdb.NewMetricsRecorder(client)
//
// Write errors arrive asynchronously and are logged. Connection and
// health check errors are returned directly.
package influxdb
