/*
Package datapub materializes tabular datasets and publishes them to a remote
hierarchical file store such as HDFS.

A run has three stages, executed one after another:

1. Produce

   A Source returns an in-memory Dataset. The fake package generates
   synthetic records from a field specification; FetchSource pulls records
   for a list of keys from an external system through a Fetcher (see the
   twitter and kafka packages), skipping keys which fail; the json package
   loads existing JSON files.

2. Serialize

   Each configured Format is rendered by an Encoder (packages csv, json,
   parquet and avro) into a local file sharing the run's base name. Formats
   are independent of one another.

3. Publish

   The Publisher ensures the remote directory exists, deletes any stale file
   at each target path, uploads the new artifact, and lists the directory.
   Stores are implemented in packages webhdfs, aws/s3, boltdb and file.

Every operation's outcome is collected in a Summary. Failures in connecting,
ensuring the directory, producing, serializing, uploading, or listing are
fatal; a failed reconcile is logged and the upload is attempted anyway.
*/
package datapub
