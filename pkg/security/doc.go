/*
Package security decrypts the cluster administrator password.

The provisioning service stores the password as base64 of the 3DES-ECB
ciphertext with PKCS#5 padding, keyed by the cluster's 24-byte passkey.
The overlay router is launched with the decrypted value as its
encryption password:

	password, err := security.DecryptText(cluster.AdminPassword, cluster.Passkey)
*/
package security
